// Package pipeline wires the five ingestion stages of §4.1 to the broker,
// the document store, and the image decoder. Each stage is a small
// constructor-injected type exposing one Handle method, shaped after the
// teacher's pkg/collector constructor-injection pattern (collect.go):
// a Deps struct plays the role of Options/Config, threaded once at
// startup into every stage rather than assembled ad hoc per call.
package pipeline

import (
	"github.com/imagevault/imagevault/pkg/archive"
	"github.com/imagevault/imagevault/pkg/broker"
	"github.com/imagevault/imagevault/pkg/common"
	"github.com/imagevault/imagevault/pkg/idx"
	"github.com/imagevault/imagevault/pkg/log"
	"github.com/imagevault/imagevault/pkg/store"
)

// Deps collects every collaborator the pipeline stages consume. One Deps
// value is built at process startup and shared by every stage consumer,
// the way the teacher threads a single *common.MirrorOptions through its
// collaborators.
type Deps struct {
	Collections  store.CollectionRepository
	Jobs         store.JobRepository
	CacheFolders store.CacheFolderRepository
	Index        idx.Writer
	Publisher    broker.Publisher
	Decoder      common.ImageDecoder
	Walker       common.FileWalker
	Log          log.PluggableLoggerInterface

	ThumbnailTarget common.ImageTarget
	CacheTarget     common.ImageTarget
}

// openReader is the archive.NewReader indirection, overridden in tests so
// a stage doesn't need a real file on disk to exercise its decision logic.
var openReader = archive.NewReader
