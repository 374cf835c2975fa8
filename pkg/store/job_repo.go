package store

import (
	"context"
	"fmt"
	"time"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// JobRepository is the set of document-store operations the core consumes
// for the BackgroundJob aggregate (§6). IncrementStage is a single
// $inc — consumers MUST NOT read a job, add to a counter in memory, and
// write it back (§4.2).
type JobRepository interface {
	Create(ctx context.Context, job *apitypes.BackgroundJob) error
	GetByID(ctx context.Context, id apitypes.ID) (*apitypes.BackgroundJob, error)
	FindByCollectionID(ctx context.Context, collectionID apitypes.ID) (*apitypes.BackgroundJob, error)
	IncrementStage(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, by int64) error
	IncrementStageTotal(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, by int64) error
	SetStageStatus(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, status apitypes.JobStatus, errMessage string) error
	SetStageTotals(ctx context.Context, jobID apitypes.ID, totals map[apitypes.StageName]int64) error
	SetJobStatus(ctx context.Context, jobID apitypes.ID, status apitypes.JobStatus) error
	ListNonTerminal(ctx context.Context) ([]*apitypes.BackgroundJob, error)
}

type jobRepo struct {
	store *Store
}

func NewJobRepository(s *Store) JobRepository {
	return &jobRepo{store: s}
}

func (r *jobRepo) Create(ctx context.Context, job *apitypes.BackgroundJob) error {
	_, err := r.store.jobs().InsertOne(ctx, job)
	if err != nil {
		return common.NewError(common.KindTransientIO, "JobRepository.Create", err)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id apitypes.ID) (*apitypes.BackgroundJob, error) {
	var job apitypes.BackgroundJob
	err := r.store.jobs().FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, common.NewError(common.KindNotFound, "JobRepository.GetByID", err)
	}
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "JobRepository.GetByID", err)
	}
	return &job, nil
}

// FindByCollectionID returns the most recently created job scoped to
// collectionID — the one a collection's summary consults to decide its
// processingIncomplete flag (§3 addition, "computed at summary-build time
// from hasFailedStage"). Library-wide jobs (CollectionID nil) never match.
func (r *jobRepo) FindByCollectionID(ctx context.Context, collectionID apitypes.ID) (*apitypes.BackgroundJob, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(1)
	cur, err := r.store.jobs().Find(ctx, bson.M{"collectionId": collectionID}, opts)
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "JobRepository.FindByCollectionID", err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, common.NewError(common.KindTransientIO, "JobRepository.FindByCollectionID", err)
		}
		return nil, common.NewError(common.KindNotFound, "JobRepository.FindByCollectionID", mongo.ErrNoDocuments)
	}
	var job apitypes.BackgroundJob
	if err := cur.Decode(&job); err != nil {
		return nil, common.NewError(common.KindTransientIO, "JobRepository.FindByCollectionID", err)
	}
	return &job, nil
}

// IncrementStage is the single-expression atomic update spec §4.2 mandates:
// `$inc stages.<name>.completedItems`. The filter is only the job's _id, so
// an absent stage is not skipped: $inc creates stages.<name>.completedItems
// on its own, with no totalItems or status beside it. The pipeline's
// triggers seed every stage when they create the job, before the first
// message referencing a stage is ever published.
func (r *jobRepo) IncrementStage(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, by int64) error {
	field := fmt.Sprintf("stages.%s.completedItems", stage)
	update := bson.M{
		"$inc": bson.M{field: by},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	_, err := r.store.jobs().UpdateOne(ctx, bson.M{"_id": jobID}, update)
	if err != nil {
		return common.NewError(common.KindTransientIO, "JobRepository.IncrementStage", err)
	}
	return nil
}

// IncrementStageTotal grows a stage's planned totalItems as newly
// discovered work is found (§4.1 — a library-wide job's totals aren't known
// up front, since they depend on enumerating every candidate collection).
// The first call against a stage also flips it from Pending to InProgress
// and stamps startedAt, via a separate conditional update so the $inc
// itself stays a single commutative expression.
func (r *jobRepo) IncrementStageTotal(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, by int64) error {
	now := time.Now().UTC()
	startFilter := bson.M{"_id": jobID, fmt.Sprintf("stages.%s.startedAt", stage): nil}
	startUpdate := bson.M{"$set": bson.M{
		fmt.Sprintf("stages.%s.startedAt", stage): now,
		fmt.Sprintf("stages.%s.status", stage):    apitypes.StatusInProgress,
	}}
	if _, err := r.store.jobs().UpdateOne(ctx, startFilter, startUpdate); err != nil {
		return common.NewError(common.KindTransientIO, "JobRepository.IncrementStageTotal", err)
	}

	field := fmt.Sprintf("stages.%s.totalItems", stage)
	update := bson.M{
		"$inc": bson.M{field: by},
		"$set": bson.M{"updatedAt": now},
	}
	if _, err := r.store.jobs().UpdateOne(ctx, bson.M{"_id": jobID}, update); err != nil {
		return common.NewError(common.KindTransientIO, "JobRepository.IncrementStageTotal", err)
	}
	return nil
}

func (r *jobRepo) SetStageStatus(ctx context.Context, jobID apitypes.ID, stage apitypes.StageName, status apitypes.JobStatus, errMessage string) error {
	set := bson.M{
		fmt.Sprintf("stages.%s.status", stage): status,
		"updatedAt":                            time.Now().UTC(),
	}
	if errMessage != "" {
		set[fmt.Sprintf("stages.%s.errorMessage", stage)] = apitypes.TruncatedErrorMessage(errMessage)
	}
	if status == apitypes.StatusCompleted {
		set[fmt.Sprintf("stages.%s.completedAt", stage)] = time.Now().UTC()
	}
	_, err := r.store.jobs().UpdateOne(ctx, bson.M{"_id": jobID}, bson.M{"$set": set})
	if err != nil {
		return common.NewError(common.KindTransientIO, "JobRepository.SetStageStatus", err)
	}
	if status == apitypes.StatusFailed {
		if _, err := r.store.jobs().UpdateOne(ctx, bson.M{"_id": jobID}, bson.M{"$set": bson.M{"status": apitypes.StatusFailed}}); err != nil {
			return common.NewError(common.KindTransientIO, "JobRepository.SetStageStatus", err)
		}
	}
	return nil
}

// SetStageTotals seeds or overwrites the planned totals for a set of
// stages, marking each InProgress and stamping startedAt. The pipeline does
// not call it; the resume path (§4.1 "Resume") grows the thumbnail/cache
// totals through IncrementStageTotal instead.
func (r *jobRepo) SetStageTotals(ctx context.Context, jobID apitypes.ID, totals map[apitypes.StageName]int64) error {
	now := time.Now().UTC()
	set := bson.M{"updatedAt": now}
	for name, total := range totals {
		set[fmt.Sprintf("stages.%s.totalItems", name)] = total
		set[fmt.Sprintf("stages.%s.status", name)] = apitypes.StatusInProgress
		set[fmt.Sprintf("stages.%s.startedAt", name)] = now
	}
	_, err := r.store.jobs().UpdateOne(ctx, bson.M{"_id": jobID}, bson.M{"$set": set})
	if err != nil {
		return common.NewError(common.KindTransientIO, "JobRepository.SetStageTotals", err)
	}
	return nil
}

func (r *jobRepo) SetJobStatus(ctx context.Context, jobID apitypes.ID, status apitypes.JobStatus) error {
	set := bson.M{"status": status, "updatedAt": time.Now().UTC()}
	if status.IsTerminal() {
		set["completedAt"] = time.Now().UTC()
	}
	if status == apitypes.StatusCompleted {
		set["progressPercent"] = 100
	}
	_, err := r.store.jobs().UpdateOne(ctx, bson.M{"_id": jobID}, bson.M{"$set": set})
	if err != nil {
		return common.NewError(common.KindTransientIO, "JobRepository.SetJobStatus", err)
	}
	return nil
}

func (r *jobRepo) ListNonTerminal(ctx context.Context) ([]*apitypes.BackgroundJob, error) {
	filter := bson.M{"status": bson.M{"$nin": bson.A{apitypes.StatusCompleted, apitypes.StatusFailed, apitypes.StatusCancelled}}}
	cur, err := r.store.jobs().Find(ctx, filter)
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "JobRepository.ListNonTerminal", err)
	}
	defer cur.Close(ctx)

	var out []*apitypes.BackgroundJob
	if err := cur.All(ctx, &out); err != nil {
		return nil, common.NewError(common.KindTransientIO, "JobRepository.ListNonTerminal", err)
	}
	return out, nil
}
