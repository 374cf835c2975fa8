package apitypes

// MessageSource identifies where an image's bytes come from: either a
// plain filesystem path, or an (archivePath, entryName) pair inside an
// archive. Exactly one of the two forms is populated.
type MessageSource struct {
	FilePath    string `json:"filePath,omitempty"`
	ArchivePath string `json:"archivePath,omitempty"`
	EntryName   string `json:"entryName,omitempty"`
}

// IsArchive reports whether this source points into an archive entry.
func (s MessageSource) IsArchive() bool { return s.ArchivePath != "" }

// LibraryScanMessage is the Stage A input (§4.1).
type LibraryScanMessage struct {
	JobID               ID     `json:"jobId"`
	LibraryID           ID     `json:"libraryId"`
	LibraryPath         string `json:"libraryPath"`
	IncludeSubfolders   bool   `json:"includeSubfolders"`
	ForceRescan         bool   `json:"forceRescan,omitempty"`
	ResumeIncomplete    bool   `json:"resumeIncomplete,omitempty"`
	UseDirectFileAccess bool   `json:"useDirectFileAccess,omitempty"`
	AutoScan            bool   `json:"autoScan,omitempty"`
	OverwriteExisting   bool   `json:"overwriteExisting,omitempty"`
}

// CollectionScanMessage is the Stage B input (§4.1).
type CollectionScanMessage struct {
	JobID               ID             `json:"jobId"`
	CollectionID        ID             `json:"collectionId"`
	CollectionPath      string         `json:"collectionPath"`
	CollectionType      CollectionType `json:"collectionType"`
	ForceRescan         bool           `json:"forceRescan"`
	UseDirectFileAccess bool           `json:"useDirectFileAccess"`
}

// ImageProcessMessage is the Stage C input (§4.1).
type ImageProcessMessage struct {
	JobID        ID            `json:"jobId"`
	CollectionID ID            `json:"collectionId"`
	ImageID      ID            `json:"imageId"`
	Source       MessageSource `json:"source"`
}

// DerivativeGenMessage is the shared shape of Stage D (thumbnail-gen) and
// Stage E (cache-gen) inputs (§4.1); they differ only by target dimensions
// and which queue/stage they report against.
type DerivativeGenMessage struct {
	JobID        ID            `json:"jobId"`
	CollectionID ID            `json:"collectionId"`
	ImageID      ID            `json:"imageId"`
	Source       MessageSource `json:"source"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Format       string        `json:"format"`
	Quality      int           `json:"quality"`
}

// DeliveryHeaders are the broker-level headers every message carries (§4.4,
// §6). MessageType is the sole discriminator DLQ recovery uses.
type DeliveryHeaders struct {
	MessageType        MessageType `json:"messageType"`
	OriginalQueue      string      `json:"originalQueue,omitempty"`
	RedeliveredFromDLQ bool        `json:"xRedeliveredFromDlq,omitempty"`
	DeliveryAttempt    int         `json:"deliveryAttempt,omitempty"`
}
