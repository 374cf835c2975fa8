package apitypes

import (
	"encoding/json"
	"fmt"
)

// CollectionType distinguishes a folder-backed collection from an
// archive-backed one. Mirrors the teacher's PlatformType marshal/unmarshal
// pattern (pkg/api/v2alpha1/type_platform.go) so enum values round-trip
// through JSON as the strings "Folder" and "Archive" rather than raw ints.
// No BSON marshaler is defined, so the document store keeps the int.
// nolint: recvcheck
type CollectionType int

const (
	TypeFolder CollectionType = iota
	TypeArchive
)

var collectionTypeStrings = map[CollectionType]string{
	TypeFolder:  "Folder",
	TypeArchive: "Archive",
}

var collectionTypeValues = map[string]CollectionType{
	"Folder":  TypeFolder,
	"Archive": TypeArchive,
}

func (t CollectionType) String() string { return collectionTypeStrings[t] }

func (t CollectionType) MarshalJSON() ([]byte, error) {
	// nolint: wrapcheck
	return json.Marshal(t.String())
}

// nolint: recvcheck
func (t *CollectionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w", err)
	}
	v, ok := collectionTypeValues[s]
	if !ok {
		return fmt.Errorf("unknown collection type %q", s)
	}
	*t = v
	return nil
}

// JobStatus is the overall status of a BackgroundJob, and also the status
// of an individual Stage within one.
// nolint: recvcheck
type JobStatus int

const (
	StatusPending JobStatus = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusCancelled
)

var jobStatusStrings = map[JobStatus]string{
	StatusPending:    "Pending",
	StatusInProgress: "InProgress",
	StatusCompleted:  "Completed",
	StatusFailed:     "Failed",
	StatusCancelled:  "Cancelled",
}

var jobStatusValues = map[string]JobStatus{
	"Pending":    StatusPending,
	"InProgress": StatusInProgress,
	"Completed":  StatusCompleted,
	"Failed":     StatusFailed,
	"Cancelled":  StatusCancelled,
}

func (s JobStatus) String() string { return jobStatusStrings[s] }

func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s JobStatus) MarshalJSON() ([]byte, error) {
	// nolint: wrapcheck
	return json.Marshal(s.String())
}

// nolint: recvcheck
func (s *JobStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("%w", err)
	}
	v, ok := jobStatusValues[str]
	if !ok {
		return fmt.Errorf("unknown job status %q", str)
	}
	*s = v
	return nil
}

// SortField enumerates the fields the cross-collection index can sort by.
type SortField string

const (
	SortByUpdatedAt  SortField = "updatedAt"
	SortByCreatedAt  SortField = "createdAt"
	SortByName       SortField = "name"
	SortByImageCount SortField = "imageCount"
	SortByTotalSize  SortField = "totalSize"
)

var validSortFields = map[SortField]bool{
	SortByUpdatedAt: true, SortByCreatedAt: true, SortByName: true,
	SortByImageCount: true, SortByTotalSize: true,
}

func (f SortField) Valid() bool { return validSortFields[f] }

// SortDir is the direction of a sort.
type SortDir string

const (
	DirAsc  SortDir = "asc"
	DirDesc SortDir = "desc"
)

func (d SortDir) Valid() bool { return d == DirAsc || d == DirDesc }

// RebuildMode selects one of the four index-rebuild strategies (§4.3).
type RebuildMode string

const (
	RebuildFull            RebuildMode = "Full"
	RebuildForceRebuildAll RebuildMode = "ForceRebuildAll"
	RebuildChangedOnly     RebuildMode = "ChangedOnly"
	RebuildVerify          RebuildMode = "Verify"
)

func (m RebuildMode) Valid() bool {
	switch m {
	case RebuildFull, RebuildForceRebuildAll, RebuildChangedOnly, RebuildVerify:
		return true
	}
	return false
}

// StageName identifies one of the three pipeline stages tracked on a
// BackgroundJob's stages map.
type StageName string

const (
	StageScan      StageName = "scan"
	StageThumbnail StageName = "thumbnail"
	StageCache     StageName = "cache"
)

// MessageType is the sole discriminator used by DLQ recovery (§4.4) and
// equals the routing key / queue name for each pipeline stage.
type MessageType string

const (
	MessageLibraryScan    MessageType = "library-scan"
	MessageCollectionScan MessageType = "collection-scan"
	MessageImageProcess   MessageType = "image-process"
	MessageThumbnailGen   MessageType = "thumbnail-gen"
	MessageCacheGen       MessageType = "cache-gen"
)

// StageQueues lists every non-DLQ queue the broker topology declares (§6).
var StageQueues = []MessageType{
	MessageLibraryScan, MessageCollectionScan, MessageImageProcess,
	MessageThumbnailGen, MessageCacheGen,
}
