package idx

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
)

// Filter narrows a listing to one library or one collection type. A nil
// LibraryID / Type means "no filter" for that dimension. §4.3 names the two
// filters as independent secondary-set families, never a library+type
// compound key, so when both are set LibraryID is used and Type is ignored.
type Filter struct {
	LibraryID *apitypes.ID
	Type      *apitypes.CollectionType
}

func (f Filter) key(field apitypes.SortField, dir apitypes.SortDir) string {
	switch {
	case f.LibraryID != nil:
		return sortedSetKeyByLibrary(*f.LibraryID, field, dir)
	case f.Type != nil:
		return sortedSetKeyByType(*f.Type, field, dir)
	default:
		return sortedSetKey(field, dir)
	}
}

// Reader answers the four queries of §4.3, each in O(log N) or O(1) Redis
// round trips regardless of corpus size.
type Reader interface {
	GetPage(ctx context.Context, field apitypes.SortField, dir apitypes.SortDir, filter Filter, page, pageSize int) (apitypes.Page, error)
	GetSidebarPage(ctx context.Context, field apitypes.SortField, dir apitypes.SortDir, filter Filter, aroundID apitypes.ID, page, pageSize int) (apitypes.Page, error)
	GetPosition(ctx context.Context, id apitypes.ID, field apitypes.SortField, dir apitypes.SortDir, filter Filter) (apitypes.Position, error)
	GetNeighbors(ctx context.Context, id apitypes.ID, field apitypes.SortField, dir apitypes.SortDir, filter Filter) (prevID, nextID *apitypes.ID, err error)
	GetCount(ctx context.Context, filter Filter) (int64, error)
}

type reader struct {
	rdb *redis.Client
}

func NewReader(rdb *redis.Client) Reader {
	return &reader{rdb: rdb}
}

// GetPage implements the plain listing page of §4.3: one ZRANGE for the
// id window, one MGET for the summary blobs.
func (r *reader) GetPage(ctx context.Context, field apitypes.SortField, dir apitypes.SortDir, filter Filter, page, pageSize int) (apitypes.Page, error) {
	if page < 1 {
		page = 1
	}
	startRank := int64((page - 1) * pageSize)
	endRank := startRank + int64(pageSize) - 1
	return r.pageFromRanks(ctx, field, dir, filter, page, pageSize, startRank, endRank)
}

// GetSidebarPage implements the "centered" semantics of §4.3: page 1 is
// centered on aroundID's rank, later pages continue forward from page 1's
// end, earlier (non-positive) pages continue backward from page 1's start.
func (r *reader) GetSidebarPage(ctx context.Context, field apitypes.SortField, dir apitypes.SortDir, filter Filter, aroundID apitypes.ID, page, pageSize int) (apitypes.Page, error) {
	key := filter.key(field, dir)
	pos, err := r.rdb.ZRank(ctx, key, aroundID.Hex()).Result()
	if err == redis.Nil {
		return apitypes.Page{}, common.NewError(common.KindNotFound, "idx.Reader.GetSidebarPage", err)
	}
	if err != nil {
		return apitypes.Page{}, common.NewError(common.KindTransientIO, "idx.Reader.GetSidebarPage", err)
	}
	total, err := r.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return apitypes.Page{}, common.NewError(common.KindTransientIO, "idx.Reader.GetSidebarPage", err)
	}

	halfPage := int64(pageSize / 2)
	centeredStart := pos - halfPage
	centeredEnd := pos + halfPage
	if centeredStart < 0 {
		deficit := -centeredStart
		centeredStart = 0
		centeredEnd += deficit
	}
	if centeredEnd > total-1 {
		deficit := centeredEnd - (total - 1)
		centeredEnd = total - 1
		centeredStart -= deficit
	}
	if centeredStart < 0 {
		centeredStart = 0
	}
	if centeredEnd > total-1 {
		centeredEnd = total - 1
	}

	var startRank, endRank int64
	switch {
	case page == 1:
		startRank, endRank = centeredStart, centeredEnd
	case page >= 2:
		startRank = centeredEnd + 1 + int64(page-2)*int64(pageSize)
		endRank = startRank + int64(pageSize) - 1
	default: // page <= 0
		stepsBack := int64(1 - page)
		endRank = centeredStart - 1 - (stepsBack-1)*int64(pageSize)
		startRank = endRank - int64(pageSize) + 1
	}

	return r.pageFromRanksKey(ctx, key, total, page, pageSize, startRank, endRank)
}

func (r *reader) pageFromRanks(ctx context.Context, field apitypes.SortField, dir apitypes.SortDir, filter Filter, page, pageSize int, startRank, endRank int64) (apitypes.Page, error) {
	key := filter.key(field, dir)
	total, err := r.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return apitypes.Page{}, common.NewError(common.KindTransientIO, "idx.Reader.GetPage", err)
	}
	return r.pageFromRanksKey(ctx, key, total, page, pageSize, startRank, endRank)
}

func (r *reader) pageFromRanksKey(ctx context.Context, key string, total int64, page, pageSize int, startRank, endRank int64) (apitypes.Page, error) {
	if startRank < 0 {
		startRank = 0
	}
	if endRank >= total {
		endRank = total - 1
	}
	if startRank > endRank || total == 0 {
		return apitypes.Page{
			Items: []apitypes.CollectionSummary{}, Page: page, Total: total,
			TotalPages: totalPages(total, pageSize),
		}, nil
	}

	ids, err := r.rdb.ZRange(ctx, key, startRank, endRank).Result()
	if err != nil {
		return apitypes.Page{}, common.NewError(common.KindTransientIO, "idx.Reader.GetPage", err)
	}
	summaries, err := r.mgetSummaries(ctx, ids)
	if err != nil {
		return apitypes.Page{}, err
	}

	tp := totalPages(total, pageSize)
	return apitypes.Page{
		Items:      summaries,
		Page:       page,
		Total:      total,
		TotalPages: tp,
		HasNext:    endRank < total-1,
		HasPrev:    startRank > 0,
	}, nil
}

func totalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	tp := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		tp++
	}
	return tp
}

func (r *reader) mgetSummaries(ctx context.Context, ids []string) ([]apitypes.CollectionSummary, error) {
	if len(ids) == 0 {
		return []apitypes.CollectionSummary{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + "data:" + id
	}
	raws, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "idx.Reader.mgetSummaries", err)
	}
	out := make([]apitypes.CollectionSummary, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var summary apitypes.CollectionSummary
		if err := json.Unmarshal([]byte(s), &summary); err != nil {
			return nil, common.NewError(common.KindDataCorruption, "idx.Reader.mgetSummaries", err)
		}
		out = append(out, summary)
	}
	return out, nil
}

// GetPosition reports the 1-based rank and total for a collection (§4.3).
func (r *reader) GetPosition(ctx context.Context, id apitypes.ID, field apitypes.SortField, dir apitypes.SortDir, filter Filter) (apitypes.Position, error) {
	key := filter.key(field, dir)
	rank, err := r.rdb.ZRank(ctx, key, id.Hex()).Result()
	if err == redis.Nil {
		return apitypes.Position{}, common.NewError(common.KindNotFound, "idx.Reader.GetPosition", err)
	}
	if err != nil {
		return apitypes.Position{}, common.NewError(common.KindTransientIO, "idx.Reader.GetPosition", err)
	}
	total, err := r.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return apitypes.Position{}, common.NewError(common.KindTransientIO, "idx.Reader.GetPosition", err)
	}
	prevID, nextID, err := r.neighborsAt(ctx, key, rank, total)
	if err != nil {
		return apitypes.Position{}, err
	}
	return apitypes.Position{Rank1Based: rank + 1, Total: total, PrevID: prevID, NextID: nextID}, nil
}

// GetNeighbors is GetPosition's prev/next pair in isolation, used by
// sidebar navigation that already knows the rank context.
func (r *reader) GetNeighbors(ctx context.Context, id apitypes.ID, field apitypes.SortField, dir apitypes.SortDir, filter Filter) (*apitypes.ID, *apitypes.ID, error) {
	key := filter.key(field, dir)
	rank, err := r.rdb.ZRank(ctx, key, id.Hex()).Result()
	if err == redis.Nil {
		return nil, nil, common.NewError(common.KindNotFound, "idx.Reader.GetNeighbors", err)
	}
	if err != nil {
		return nil, nil, common.NewError(common.KindTransientIO, "idx.Reader.GetNeighbors", err)
	}
	total, err := r.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return nil, nil, common.NewError(common.KindTransientIO, "idx.Reader.GetNeighbors", err)
	}
	return r.neighborsAt(ctx, key, rank, total)
}

func (r *reader) neighborsAt(ctx context.Context, key string, rank, total int64) (*apitypes.ID, *apitypes.ID, error) {
	var prevID, nextID *apitypes.ID
	if rank > 0 {
		ids, err := r.rdb.ZRange(ctx, key, rank-1, rank-1).Result()
		if err != nil {
			return nil, nil, common.NewError(common.KindTransientIO, "idx.Reader.neighborsAt", err)
		}
		if len(ids) == 1 {
			id, err := apitypes.ParseID(ids[0])
			if err == nil {
				prevID = &id
			}
		}
	}
	if rank < total-1 {
		ids, err := r.rdb.ZRange(ctx, key, rank+1, rank+1).Result()
		if err != nil {
			return nil, nil, common.NewError(common.KindTransientIO, "idx.Reader.neighborsAt", err)
		}
		if len(ids) == 1 {
			id, err := apitypes.ParseID(ids[0])
			if err == nil {
				nextID = &id
			}
		}
	}
	return prevID, nextID, nil
}

// GetCount reports ZCARD for the filtered (or unfiltered) "updatedAt asc"
// set — all 10 field/dir sorted sets of a given filter share the same membership,
// so any one field/dir pair gives the correct denominator.
func (r *reader) GetCount(ctx context.Context, filter Filter) (int64, error) {
	key := filter.key(apitypes.SortByUpdatedAt, apitypes.DirAsc)
	total, err := r.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, common.NewError(common.KindTransientIO, "idx.Reader.GetCount", err)
	}
	return total, nil
}
