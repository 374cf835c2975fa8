package apitypes

import "time"

// Stage is one phase of the ingestion pipeline with its own counter pair
// (§3, §4.2). completedItems must never exceed totalItems.
type Stage struct {
	Status         JobStatus  `bson:"status"         json:"status"`
	TotalItems     int64      `bson:"totalItems"     json:"totalItems"`
	CompletedItems int64      `bson:"completedItems" json:"completedItems"`
	Message        string     `bson:"message"        json:"message,omitempty"`
	StartedAt      *time.Time `bson:"startedAt"      json:"startedAt,omitempty"`
	CompletedAt    *time.Time `bson:"completedAt"    json:"completedAt,omitempty"`
	ErrorMessage   string     `bson:"errorMessage"   json:"errorMessage,omitempty"`
}

// EligibleForClosure reports whether this stage has reached its planned
// total and can be transitioned to Completed (§3 invariant).
func (s Stage) EligibleForClosure() bool {
	return s.TotalItems > 0 && s.CompletedItems >= s.TotalItems && s.Status != StatusCompleted
}

const maxStageErrorMessage = 2048

// TruncatedErrorMessage bounds an error string to 2KB before it is written
// onto a Stage, per SPEC_FULL's additional data-model note.
func TruncatedErrorMessage(msg string) string {
	if len(msg) <= maxStageErrorMessage {
		return msg
	}
	return msg[:maxStageErrorMessage]
}

// BackgroundJob is the aggregate tracking one pipeline run (§3).
type BackgroundJob struct {
	ID               ID                   `bson:"_id"              json:"id"`
	JobType          MessageType          `bson:"jobType"          json:"jobType"`
	Status           JobStatus            `bson:"status"           json:"status"`
	CollectionID     *ID                  `bson:"collectionId"     json:"collectionId,omitempty"`
	TriggerMessageID string               `bson:"triggerMessageId" json:"triggerMessageId"`
	Message          string               `bson:"message"          json:"message,omitempty"`
	TotalItems       int64                `bson:"totalItems"       json:"totalItems"`
	CompletedItems   int64                `bson:"completedItems"   json:"completedItems"`
	ProgressPercent  int                  `bson:"progressPercent"  json:"progressPercent"`
	Stages           map[StageName]*Stage `bson:"stages"           json:"stages"`
	CreatedAt        time.Time            `bson:"createdAt"        json:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt"        json:"updatedAt"`
	CompletedAt      *time.Time           `bson:"completedAt"      json:"completedAt,omitempty"`
}

// AllStagesCompleted reports whether every stage in the map (and the map
// itself) is Completed — the sole condition under which the job as a whole
// may become Completed (§3 invariant).
func (j *BackgroundJob) AllStagesCompleted() bool {
	if len(j.Stages) == 0 {
		return false
	}
	for _, s := range j.Stages {
		if s.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// AnyStageFailed reports whether at least one stage reports Failed.
func (j *BackgroundJob) AnyStageFailed() bool {
	for _, s := range j.Stages {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// NewBackgroundJob constructs a job with its stages map pre-seeded with the
// given planned totals. Stages MUST be populated before any producer is
// enqueued (§4.2) — callers build the totals map up front and pass it here
// rather than calling incrementStage on an absent stage.
func NewBackgroundJob(jobType MessageType, collectionID *ID, triggerMessageID string, plannedTotals map[StageName]int64) *BackgroundJob {
	now := timeNow()
	stages := make(map[StageName]*Stage, len(plannedTotals))
	for name, total := range plannedTotals {
		st := &Stage{Status: StatusPending, TotalItems: total}
		if total > 0 {
			st.Status = StatusInProgress
			st.StartedAt = &now
		}
		stages[name] = st
	}
	return &BackgroundJob{
		ID:               NewID(),
		JobType:          jobType,
		Status:           StatusInProgress,
		CollectionID:     collectionID,
		TriggerMessageID: triggerMessageID,
		Stages:           stages,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// timeNow exists so tests can be deterministic without a package-global
// clock dependency leaking into every call site.
var timeNow = func() time.Time { return time.Now().UTC() }
