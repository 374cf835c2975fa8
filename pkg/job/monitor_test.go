package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
	"github.com/imagevault/imagevault/pkg/log"
)

type fakeJobRepo struct {
	jobs map[apitypes.ID]*apitypes.BackgroundJob
}

func newFakeJobRepo(jobs ...*apitypes.BackgroundJob) *fakeJobRepo {
	r := &fakeJobRepo{jobs: map[apitypes.ID]*apitypes.BackgroundJob{}}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *fakeJobRepo) Create(ctx context.Context, job *apitypes.BackgroundJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRepo) GetByID(ctx context.Context, id apitypes.ID) (*apitypes.BackgroundJob, error) {
	return r.jobs[id], nil
}

func (r *fakeJobRepo) FindByCollectionID(ctx context.Context, collectionID apitypes.ID) (*apitypes.BackgroundJob, error) {
	var latest *apitypes.BackgroundJob
	for _, j := range r.jobs {
		if j.CollectionID == nil || *j.CollectionID != collectionID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, common.NewError(common.KindNotFound, "fakeJobRepo.FindByCollectionID", nil)
	}
	return latest, nil
}

func (r *fakeJobRepo) IncrementStage(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, by int64) error {
	r.jobs[jobID].Stages[stage].CompletedItems += by
	return nil
}

func (r *fakeJobRepo) IncrementStageTotal(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, by int64) error {
	r.jobs[jobID].Stages[stage].TotalItems += by
	return nil
}

func (r *fakeJobRepo) SetStageStatus(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, status apitypes.JobStatus, errMessage string) error {
	r.jobs[jobID].Stages[stage].Status = status
	return nil
}

func (r *fakeJobRepo) SetStageTotals(ctx context.Context, jobID apitypes.ID, totals map[apitypes.StageName]int64) error {
	return nil
}

func (r *fakeJobRepo) SetJobStatus(ctx context.Context, jobID apitypes.ID, status apitypes.JobStatus) error {
	r.jobs[jobID].Status = status
	return nil
}

func (r *fakeJobRepo) ListNonTerminal(ctx context.Context) ([]*apitypes.BackgroundJob, error) {
	var out []*apitypes.BackgroundJob
	for _, j := range r.jobs {
		if !j.Status.IsTerminal() {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeCollectionCounts struct {
	images, thumbnails, cacheImages int64
}

func (f fakeCollectionCounts) DerivativeCounts(ctx context.Context, collectionID apitypes.ID) (int64, int64, int64, error) {
	return f.images, f.thumbnails, f.cacheImages, nil
}

func TestReconcileWithCollectionClosesCompletedStage(t *testing.T) {
	collID := apitypes.NewID()
	j := apitypes.NewBackgroundJob(apitypes.MessageCollectionScan, &collID, "msg-1", map[apitypes.StageName]int64{
		apitypes.StageThumbnail: 3,
		apitypes.StageCache:     3,
	})
	j.Stages[apitypes.StageScan] = &apitypes.Stage{Status: apitypes.StatusCompleted, TotalItems: 3, CompletedItems: 3}

	repo := newFakeJobRepo(j)
	m := NewMonitor(repo, fakeCollectionCounts{images: 3, thumbnails: 3, cacheImages: 3}, log.Nop{}, time.Second)

	require.NoError(t, m.reconcile(context.Background(), j))

	assert.Equal(t, apitypes.StatusCompleted, j.Stages[apitypes.StageThumbnail].Status)
	assert.Equal(t, apitypes.StatusCompleted, j.Stages[apitypes.StageCache].Status)
	assert.Equal(t, apitypes.StatusCompleted, j.Status)
}

func TestReconcileWithCollectionCorrectsDrift(t *testing.T) {
	collID := apitypes.NewID()
	j := apitypes.NewBackgroundJob(apitypes.MessageCollectionScan, &collID, "msg-1", map[apitypes.StageName]int64{
		apitypes.StageThumbnail: 10,
		apitypes.StageCache:     10,
	})
	j.Stages[apitypes.StageThumbnail].CompletedItems = 2

	repo := newFakeJobRepo(j)
	m := NewMonitor(repo, fakeCollectionCounts{thumbnails: 5, cacheImages: 0}, log.Nop{}, time.Second)

	require.NoError(t, m.reconcile(context.Background(), j))

	assert.Equal(t, int64(5), j.Stages[apitypes.StageThumbnail].CompletedItems)
	assert.NotEqual(t, apitypes.StatusCompleted, j.Status)
}

func TestReconcileWithoutCollectionClosesEligibleStages(t *testing.T) {
	j := apitypes.NewBackgroundJob(apitypes.MessageLibraryScan, nil, "msg-1", map[apitypes.StageName]int64{
		apitypes.StageScan: 5,
	})
	j.Stages[apitypes.StageScan].CompletedItems = 5

	repo := newFakeJobRepo(j)
	m := NewMonitor(repo, fakeCollectionCounts{}, log.Nop{}, time.Second)

	require.NoError(t, m.reconcile(context.Background(), j))

	assert.Equal(t, apitypes.StatusCompleted, j.Stages[apitypes.StageScan].Status)
	assert.Equal(t, apitypes.StatusCompleted, j.Status)
}

func TestReconcileMarksJobFailedWhenAnyStageFailed(t *testing.T) {
	j := apitypes.NewBackgroundJob(apitypes.MessageLibraryScan, nil, "msg-1", map[apitypes.StageName]int64{
		apitypes.StageScan: 5,
	})
	j.Stages[apitypes.StageScan].Status = apitypes.StatusFailed

	repo := newFakeJobRepo(j)
	m := NewMonitor(repo, fakeCollectionCounts{}, log.Nop{}, time.Second)

	require.NoError(t, m.reconcile(context.Background(), j))
	assert.Equal(t, apitypes.StatusFailed, j.Status)
}
