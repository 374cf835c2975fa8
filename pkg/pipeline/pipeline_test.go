package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
	"github.com/imagevault/imagevault/pkg/idx"
	"github.com/imagevault/imagevault/pkg/log"
)

// --- fakes -----------------------------------------------------------------

type fakeCollections struct {
	byID   map[apitypes.ID]*apitypes.Collection
	byPath map[string]apitypes.ID
}

func newFakeCollections() *fakeCollections {
	return &fakeCollections{byID: map[apitypes.ID]*apitypes.Collection{}, byPath: map[string]apitypes.ID{}}
}

func (f *fakeCollections) Create(ctx context.Context, c *apitypes.Collection) error {
	f.byID[c.ID] = c
	f.byPath[c.LibraryID.Hex()+"|"+c.Path] = c.ID
	return nil
}
func (f *fakeCollections) GetByID(ctx context.Context, id apitypes.ID) (*apitypes.Collection, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, common.NewError(common.KindNotFound, "fakeCollections.GetByID", nil)
	}
	cp := *c
	return &cp, nil
}
func (f *fakeCollections) FindByLibrary(ctx context.Context, libraryID apitypes.ID) ([]*apitypes.Collection, error) {
	return nil, nil
}
func (f *fakeCollections) FindByPath(ctx context.Context, libraryID apitypes.ID, path string) (*apitypes.Collection, error) {
	id, ok := f.byPath[libraryID.Hex()+"|"+path]
	if !ok {
		return nil, common.NewError(common.KindNotFound, "fakeCollections.FindByPath", nil)
	}
	return f.GetByID(ctx, id)
}
func (f *fakeCollections) ListAll(ctx context.Context, batchSize int, fn func([]*apitypes.Collection) error) error {
	return nil
}
func (f *fakeCollections) AtomicAddImage(ctx context.Context, id apitypes.ID, img apitypes.ImageEmbedded) (bool, error) {
	c := f.byID[id]
	if _, ok := c.FindImage(img.Filename, img.RelativePath); ok {
		return false, nil
	}
	c.Images = append(c.Images, img)
	return true, nil
}
func (f *fakeCollections) AtomicSetImageDimensions(ctx context.Context, id, imageID apitypes.ID, width, height int, format string) error {
	c := f.byID[id]
	for i := range c.Images {
		if c.Images[i].ID == imageID {
			c.Images[i].Width, c.Images[i].Height, c.Images[i].Format = width, height, format
			return nil
		}
	}
	return common.NewError(common.KindNotFound, "fakeCollections.AtomicSetImageDimensions", nil)
}
func (f *fakeCollections) AtomicAddThumbnails(ctx context.Context, id apitypes.ID, list []apitypes.ThumbnailEmbedded) error {
	f.byID[id].Thumbnails = append(f.byID[id].Thumbnails, list...)
	return nil
}
func (f *fakeCollections) AtomicAddCacheImages(ctx context.Context, id apitypes.ID, list []apitypes.CacheImageEmbedded) error {
	f.byID[id].CacheImages = append(f.byID[id].CacheImages, list...)
	return nil
}
func (f *fakeCollections) ClearImageArrays(ctx context.Context, id apitypes.ID) error {
	c := f.byID[id]
	c.Images, c.Thumbnails, c.CacheImages = nil, nil, nil
	return nil
}
func (f *fakeCollections) UpdateSettings(ctx context.Context, id apitypes.ID, settings apitypes.CollectionSettings) error {
	f.byID[id].Settings = settings
	return nil
}
func (f *fakeCollections) SoftDelete(ctx context.Context, id apitypes.ID) error {
	f.byID[id].Deleted = true
	return nil
}

type fakeJobs struct {
	jobs map[apitypes.ID]*apitypes.BackgroundJob
}

func newFakeJobs() *fakeJobs { return &fakeJobs{jobs: map[apitypes.ID]*apitypes.BackgroundJob{}} }

func (f *fakeJobs) Create(ctx context.Context, job *apitypes.BackgroundJob) error {
	f.jobs[job.ID] = job
	return nil
}
func (f *fakeJobs) GetByID(ctx context.Context, id apitypes.ID) (*apitypes.BackgroundJob, error) {
	return f.jobs[id], nil
}
func (f *fakeJobs) FindByCollectionID(ctx context.Context, collectionID apitypes.ID) (*apitypes.BackgroundJob, error) {
	var latest *apitypes.BackgroundJob
	for _, j := range f.jobs {
		if j.CollectionID == nil || *j.CollectionID != collectionID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, common.NewError(common.KindNotFound, "fakeJobs.FindByCollectionID", nil)
	}
	return latest, nil
}
func (f *fakeJobs) IncrementStage(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, by int64) error {
	if st, ok := f.jobs[jobID].Stages[stage]; ok {
		st.CompletedItems += by
	}
	return nil
}
func (f *fakeJobs) IncrementStageTotal(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, by int64) error {
	if st, ok := f.jobs[jobID].Stages[stage]; ok {
		st.TotalItems += by
	}
	return nil
}
func (f *fakeJobs) SetStageStatus(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, status apitypes.JobStatus, errMessage string) error {
	if st, ok := f.jobs[jobID].Stages[stage]; ok {
		st.Status = status
	}
	return nil
}
func (f *fakeJobs) SetStageTotals(ctx context.Context, jobID apitypes.ID, totals map[apitypes.StageName]int64) error {
	j := f.jobs[jobID]
	for name, total := range totals {
		j.Stages[name] = &apitypes.Stage{Status: apitypes.StatusInProgress, TotalItems: total}
	}
	return nil
}
func (f *fakeJobs) SetJobStatus(ctx context.Context, jobID apitypes.ID, status apitypes.JobStatus) error {
	f.jobs[jobID].Status = status
	return nil
}
func (f *fakeJobs) ListNonTerminal(ctx context.Context) ([]*apitypes.BackgroundJob, error) { return nil, nil }

type fakeCacheFolders struct {
	folder apitypes.CacheFolder
}

func (f *fakeCacheFolders) FindActiveByLowestPriority(ctx context.Context, estimatedBytes int64) (*apitypes.CacheFolder, error) {
	cp := f.folder
	return &cp, nil
}
func (f *fakeCacheFolders) AtomicIncStats(ctx context.Context, id apitypes.ID, sizeDelta, fileDelta int64, collectionID apitypes.ID) error {
	return nil
}
func (f *fakeCacheFolders) EnsureSeeded(ctx context.Context, folders []common.CacheFolderConfig) error {
	return nil
}

type fakeIndex struct{ upserts int }

func (f *fakeIndex) Upsert(ctx context.Context, s apitypes.CollectionSummary, state apitypes.CollectionIndexState, thumb []byte) error {
	f.upserts++
	return nil
}
func (f *fakeIndex) Delete(ctx context.Context, id apitypes.ID, libID apitypes.ID, t apitypes.CollectionType) error {
	return nil
}
func (f *fakeIndex) ReadSummary(ctx context.Context, id apitypes.ID) (apitypes.CollectionSummary, bool, error) {
	return apitypes.CollectionSummary{}, false, nil
}

var _ idx.Writer = (*fakeIndex)(nil)

type fakePublisher struct {
	published []publishedMsg
}

type publishedMsg struct {
	Type apitypes.MessageType
	Body any
}

func (f *fakePublisher) Publish(ctx context.Context, msgType apitypes.MessageType, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	f.published = append(f.published, publishedMsg{Type: msgType, Body: raw})
	return nil
}

type fakeDecoder struct{}

func (fakeDecoder) Dimensions(data []byte) (int, int, string, error) { return 100, 200, "jpeg", nil }
func (fakeDecoder) Render(data []byte, targetW, targetH, quality int) ([]byte, string, error) {
	return []byte("rendered"), "jpeg", nil
}
func (fakeDecoder) RenderJPEG(data []byte, targetW, targetH, quality int) ([]byte, error) {
	return []byte("rendered"), nil
}

type fakeWalker struct {
	children map[string][]common.WalkEntry
}

func (w fakeWalker) Walk(root string, includeSubfolders bool) ([]common.WalkEntry, error) {
	return w.children[root], nil
}
func (w fakeWalker) ListChildren(root string) ([]common.WalkEntry, error) {
	return w.children[root], nil
}

func newTestDeps() (*Deps, *fakeCollections, *fakeJobs, *fakePublisher) {
	coll := newFakeCollections()
	jobs := newFakeJobs()
	pub := &fakePublisher{}
	deps := &Deps{
		Collections:     coll,
		Jobs:            jobs,
		CacheFolders:    &fakeCacheFolders{folder: apitypes.CacheFolder{ID: apitypes.NewID(), Path: "/cache", MaxSizeBytes: 1 << 30}},
		Index:           &fakeIndex{},
		Publisher:       pub,
		Decoder:         fakeDecoder{},
		Walker:          fakeWalker{children: map[string][]common.WalkEntry{}},
		Log:             log.Nop{},
		ThumbnailTarget: common.ImageTarget{Width: 200, Height: 200, Quality: 85},
		CacheTarget:     common.ImageTarget{Width: 1600, Height: 1600, Quality: 90},
	}
	return deps, coll, jobs, pub
}

// --- tests -------------------------------------------------------------

func TestCollectionScanDirectModePublishesNoMessages(t *testing.T) {
	deps, coll, jobs, pub := newTestDeps()
	libID := apitypes.NewID()
	collID := apitypes.NewID()
	coll.byID[collID] = &apitypes.Collection{ID: collID, LibraryID: libID, Path: "/lib/comic1", Type: apitypes.TypeFolder}

	deps.Walker = fakeWalker{children: map[string][]common.WalkEntry{
		"/lib/comic1": {
			{Path: "/lib/comic1/a.jpg", Size: 10},
			{Path: "/lib/comic1/b.jpg", Size: 20},
		},
	}}

	job := apitypes.NewBackgroundJob(apitypes.MessageCollectionScan, &collID, "trigger-1", map[apitypes.StageName]int64{
		apitypes.StageScan: 0, apitypes.StageThumbnail: 0, apitypes.StageCache: 0,
	})
	jobs.jobs[job.ID] = job

	msg := apitypes.CollectionScanMessage{
		JobID: job.ID, CollectionID: collID, CollectionPath: "/lib/comic1",
		CollectionType: apitypes.TypeFolder, UseDirectFileAccess: true,
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	stage := NewCollectionScanStage(deps)
	require.NoError(t, stage.Handle(context.Background(), body))

	assert.Empty(t, pub.published, "direct mode must never publish image-process/derivative messages")
	assert.Len(t, coll.byID[collID].Images, 2)
	assert.Len(t, coll.byID[collID].Thumbnails, 2)
	assert.Len(t, coll.byID[collID].CacheImages, 2)
	for _, th := range coll.byID[collID].Thumbnails {
		assert.True(t, th.IsDirect)
	}
	assert.Equal(t, apitypes.StatusCompleted, job.Stages[apitypes.StageScan].Status)
	assert.Equal(t, apitypes.StatusCompleted, job.Stages[apitypes.StageThumbnail].Status)
	assert.Equal(t, apitypes.StatusCompleted, job.Stages[apitypes.StageCache].Status)
}

func TestCollectionScanNormalModePublishesImageProcessPerImage(t *testing.T) {
	deps, coll, jobs, pub := newTestDeps()
	libID := apitypes.NewID()
	collID := apitypes.NewID()
	coll.byID[collID] = &apitypes.Collection{ID: collID, LibraryID: libID, Path: "/lib/comic2", Type: apitypes.TypeFolder}
	deps.Walker = fakeWalker{children: map[string][]common.WalkEntry{
		"/lib/comic2": {{Path: "/lib/comic2/a.jpg", Size: 10}},
	}}

	job := apitypes.NewBackgroundJob(apitypes.MessageCollectionScan, &collID, "trigger-2", map[apitypes.StageName]int64{
		apitypes.StageScan: 0, apitypes.StageThumbnail: 0, apitypes.StageCache: 0,
	})
	jobs.jobs[job.ID] = job

	msg := apitypes.CollectionScanMessage{JobID: job.ID, CollectionID: collID, CollectionPath: "/lib/comic2", CollectionType: apitypes.TypeFolder}
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	stage := NewCollectionScanStage(deps)
	require.NoError(t, stage.Handle(context.Background(), body))

	require.Len(t, pub.published, 1)
	assert.Equal(t, apitypes.MessageImageProcess, pub.published[0].Type)
	assert.Equal(t, int64(1), job.Stages[apitypes.StageThumbnail].TotalItems)
	assert.Equal(t, int64(1), job.Stages[apitypes.StageCache].TotalItems)

	// Redelivery of the same message must not double-publish or double-count.
	pub.published = nil
	require.NoError(t, stage.Handle(context.Background(), body))
	assert.Empty(t, pub.published)
	assert.Equal(t, int64(1), job.Stages[apitypes.StageThumbnail].TotalItems)
}

func TestResumeCollectionPublishesOnlyMissingDerivatives(t *testing.T) {
	deps, coll, jobs, pub := newTestDeps()
	libID := apitypes.NewID()
	collID := apitypes.NewID()
	img1, img2, img3 := apitypes.NewID(), apitypes.NewID(), apitypes.NewID()
	c := &apitypes.Collection{
		ID: collID, LibraryID: libID, Path: "/lib/comic3", Type: apitypes.TypeFolder,
		Images: []apitypes.ImageEmbedded{
			{ID: img1, Filename: "a.jpg", RelativePath: "a.jpg"},
			{ID: img2, Filename: "b.jpg", RelativePath: "b.jpg"},
			{ID: img3, Filename: "c.jpg", RelativePath: "c.jpg"},
		},
		Thumbnails: []apitypes.ThumbnailEmbedded{{ImageID: img1}, {ImageID: img2}},
	}
	coll.byID[collID] = c

	job := apitypes.NewBackgroundJob(apitypes.MessageCollectionScan, &collID, "trigger-3", map[apitypes.StageName]int64{})
	jobs.jobs[job.ID] = job

	opts := ScanOptions{ResumeIncomplete: true}
	require.NoError(t, resumeCollection(context.Background(), deps, job.ID, c, opts))

	var thumbCount, cacheCount int
	for _, p := range pub.published {
		switch p.Type {
		case apitypes.MessageThumbnailGen:
			thumbCount++
		case apitypes.MessageCacheGen:
			cacheCount++
		}
	}
	assert.Equal(t, 1, thumbCount, "only img3 is missing a thumbnail")
	assert.Equal(t, 3, cacheCount, "none of the three images have a cache entry yet")
}

func TestDecideAndDispatchSkipsAlreadyScannedCollectionWithNoFlags(t *testing.T) {
	deps, coll, jobs, pub := newTestDeps()
	libID := apitypes.NewID()
	collID := apitypes.NewID()
	coll.byID[collID] = &apitypes.Collection{ID: collID, LibraryID: libID, Path: "/lib/comic4", Type: apitypes.TypeFolder,
		Images: []apitypes.ImageEmbedded{{ID: apitypes.NewID(), Filename: "a.jpg"}}}
	coll.byPath[libID.Hex()+"|/lib/comic4"] = collID

	job := apitypes.NewBackgroundJob(apitypes.MessageLibraryScan, nil, "trigger-4", map[apitypes.StageName]int64{})
	jobs.jobs[job.ID] = job

	require.NoError(t, decideAndDispatch(context.Background(), deps, job.ID, libID, "/lib/comic4", apitypes.TypeFolder, ScanOptions{}))

	assert.Empty(t, pub.published)
}

func TestLibraryScanStageCreatesNewCollectionForDiscoveredFolder(t *testing.T) {
	deps, coll, jobs, pub := newTestDeps()
	libID := apitypes.NewID()
	deps.Walker = fakeWalker{children: map[string][]common.WalkEntry{
		"/lib": {{Path: "/lib/newcomic", IsDir: true}},
		"/lib/newcomic": {{Path: "/lib/newcomic/a.jpg"}},
	}}

	job := apitypes.NewBackgroundJob(apitypes.MessageLibraryScan, nil, "trigger-5", map[apitypes.StageName]int64{
		apitypes.StageScan: 0, apitypes.StageThumbnail: 0, apitypes.StageCache: 0,
	})
	jobs.jobs[job.ID] = job

	msg := apitypes.LibraryScanMessage{JobID: job.ID, LibraryID: libID, LibraryPath: "/lib", IncludeSubfolders: false}
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	stage := NewLibraryScanStage(deps)
	require.NoError(t, stage.Handle(context.Background(), body))

	require.Len(t, pub.published, 1)
	assert.Equal(t, apitypes.MessageCollectionScan, pub.published[0].Type)
	assert.Len(t, coll.byID, 1)
}
