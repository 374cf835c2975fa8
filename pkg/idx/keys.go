// Package idx implements the Redis-backed cross-collection index (§4.3):
// sub-100ms listing, position and neighbor queries over a corpus that can
// exceed 25,000 collections, backed by sorted sets rather than document
// scans. Grounded on the teacher's redis-driver dependency (indirect in its
// go.mod, promoted to direct here) — no pack repo exercises go-redis
// itself, so the key-schema and command shapes below follow spec §4.3
// literally rather than an example file.
package idx

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/imagevault/imagevault/pkg/apitypes"
)

const (
	keyPrefix      = "idx:"
	statsTotalKey  = keyPrefix + "stats:total"
	lastRebuildKey = keyPrefix + "last_rebuild"
)

// sortedSetKey returns the primary (unfiltered) sorted-set key for a field
// and direction, one of the 10 primary sets named in §4.3.
func sortedSetKey(field apitypes.SortField, dir apitypes.SortDir) string {
	return fmt.Sprintf("%ssorted:%s:%s", keyPrefix, field, dir)
}

func sortedSetKeyByLibrary(libID apitypes.ID, field apitypes.SortField, dir apitypes.SortDir) string {
	return fmt.Sprintf("%ssorted:by_library:%s:%s:%s", keyPrefix, libID.Hex(), field, dir)
}

func sortedSetKeyByType(t apitypes.CollectionType, field apitypes.SortField, dir apitypes.SortDir) string {
	return fmt.Sprintf("%ssorted:by_type:%s:%s:%s", keyPrefix, t.String(), field, dir)
}

func dataKey(id apitypes.ID) string  { return keyPrefix + "data:" + id.Hex() }
func stateKey(id apitypes.ID) string { return keyPrefix + "state:" + id.Hex() }
func thumbKey(id apitypes.ID) string { return keyPrefix + "thumb:" + id.Hex() }

// allSortedSetKeysFor enumerates the 30 sorted-set keys (10 primary + 10 by
// library + 10 by type) a single collection participates in — the "31 keys
// per collection" of §4.3 minus the summary and state keys, which callers
// add separately.
func allSortedSetKeysFor(libID apitypes.ID, t apitypes.CollectionType) []string {
	keys := make([]string, 0, 30)
	for _, f := range sortFields {
		for _, d := range sortDirs {
			keys = append(keys, sortedSetKey(f, d))
			keys = append(keys, sortedSetKeyByLibrary(libID, f, d))
			keys = append(keys, sortedSetKeyByType(t, f, d))
		}
	}
	return keys
}

var sortFields = []apitypes.SortField{
	apitypes.SortByUpdatedAt,
	apitypes.SortByCreatedAt,
	apitypes.SortByName,
	apitypes.SortByImageCount,
	apitypes.SortByTotalSize,
}

var sortDirs = []apitypes.SortDir{apitypes.DirAsc, apitypes.DirDesc}

// score computes the sorted-set score for a summary under the given field
// and direction (§4.3 "Score calculation"): +v for asc, -v for desc, with
// name's v being a portable FNV-1a hash of the lowercased name so storage
// order is stable across process restarts.
func score(s apitypes.CollectionSummary, field apitypes.SortField, dir apitypes.SortDir) float64 {
	var v float64
	switch field {
	case apitypes.SortByUpdatedAt:
		v = float64(s.UpdatedAt.UnixNano())
	case apitypes.SortByCreatedAt:
		v = float64(s.CreatedAt.UnixNano())
	case apitypes.SortByImageCount:
		v = float64(s.ImageCount)
	case apitypes.SortByTotalSize:
		v = float64(s.TotalSize)
	case apitypes.SortByName:
		v = float64(fnv1a(strings.ToLower(s.Name)))
	}
	if dir == apitypes.DirDesc {
		return -v
	}
	return v
}

func fnv1a(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
