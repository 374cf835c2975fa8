package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/imagevault/imagevault/pkg/apitypes"
)

func TestScoreAscDescAreNegations(t *testing.T) {
	s := apitypes.CollectionSummary{ImageCount: 42}
	asc := score(s, apitypes.SortByImageCount, apitypes.DirAsc)
	desc := score(s, apitypes.SortByImageCount, apitypes.DirDesc)
	assert.Equal(t, asc, -desc)
}

func TestScoreNameIgnoresCase(t *testing.T) {
	s1 := apitypes.CollectionSummary{Name: "Alpha"}
	s2 := apitypes.CollectionSummary{Name: "alpha"}
	assert.Equal(t, score(s1, apitypes.SortByName, apitypes.DirAsc), score(s2, apitypes.SortByName, apitypes.DirAsc))
}

func TestScoreUpdatedAtOrdersByTime(t *testing.T) {
	older := apitypes.CollectionSummary{UpdatedAt: time.Unix(100, 0)}
	newer := apitypes.CollectionSummary{UpdatedAt: time.Unix(200, 0)}
	assert.Less(t, score(older, apitypes.SortByUpdatedAt, apitypes.DirAsc), score(newer, apitypes.SortByUpdatedAt, apitypes.DirAsc))
}

func TestAllSortedSetKeysForCountsThirty(t *testing.T) {
	keys := allSortedSetKeysFor(apitypes.NewID(), apitypes.TypeFolder)
	assert.Len(t, keys, 30)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, int64(0), totalPages(0, 20))
	assert.Equal(t, int64(1), totalPages(5, 20))
	assert.Equal(t, int64(1), totalPages(20, 20))
	assert.Equal(t, int64(2), totalPages(21, 20))
}

func TestFilterKeySelectsPrimaryWhenUnfiltered(t *testing.T) {
	f := Filter{}
	key := f.key(apitypes.SortByName, apitypes.DirAsc)
	assert.Equal(t, sortedSetKey(apitypes.SortByName, apitypes.DirAsc), key)
}

func TestFilterKeyPrefersLibraryOverType(t *testing.T) {
	libID := apitypes.NewID()
	typeVal := apitypes.TypeArchive
	f := Filter{LibraryID: &libID, Type: &typeVal}
	key := f.key(apitypes.SortByName, apitypes.DirAsc)
	assert.Equal(t, sortedSetKeyByLibrary(libID, apitypes.SortByName, apitypes.DirAsc), key)
}
