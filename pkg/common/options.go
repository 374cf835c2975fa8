// Package common holds the cross-cutting options struct and the named
// interfaces for collaborators this repository treats as external (§1,
// §6): HTTP routing, JWT issuance, the web frontend, the scheduler-trigger
// service, logging transport, the broker wire protocol, image-decode math,
// and filesystem-walk primitives.
package common

import (
	"time"

	"github.com/imagevault/imagevault/pkg/log"
)

// ServiceOptions is the flat options struct every process role constructs
// from flags/config and passes down to its collaborators, the way the
// teacher's MirrorOptions is threaded through every collaborator's
// constructor.
type ServiceOptions struct {
	Role string // "api" | "worker" | "monitor" | "reconciler"

	MongoURI  string
	BrokerURI string
	CacheURI  string

	CacheFolders []CacheFolderConfig

	ThumbnailTarget ImageTarget
	CacheTarget     ImageTarget

	MonitorIntervalSec int
	MessageTTLMs       int64
	RetryMax           int

	ScanWorkerPoolSize      int
	ImageWorkerPoolSize     int
	ThumbnailWorkerPoolSize int
	CacheWorkerPoolSize     int

	LogLevel string

	Log log.PluggableLoggerInterface
}

// CacheFolderConfig is the static configuration for one cache folder root
// (§6); the live CacheFolder document tracks its mutable statistics.
type CacheFolderConfig struct {
	Path         string `json:"path"         yaml:"path"`
	Priority     int    `json:"priority"     yaml:"priority"`
	MaxSizeBytes int64  `json:"maxSizeBytes" yaml:"maxSizeBytes"`
}

// ImageTarget describes a derivative rendition's target box and encode
// quality (§6 thumbnailTarget / cacheTarget).
type ImageTarget struct {
	Width   int `json:"w"       yaml:"w"`
	Height  int `json:"h"       yaml:"h"`
	Quality int `json:"quality" yaml:"quality"`
}

func (o ServiceOptions) MonitorInterval() time.Duration {
	return time.Duration(o.MonitorIntervalSec) * time.Second
}

func (o ServiceOptions) MessageTTL() time.Duration {
	return time.Duration(o.MessageTTLMs) * time.Millisecond
}

func (o ServiceOptions) IsAPI() bool         { return o.Role == "api" }
func (o ServiceOptions) IsWorker() bool      { return o.Role == "worker" }
func (o ServiceOptions) IsMonitor() bool     { return o.Role == "monitor" }
func (o ServiceOptions) IsReconciler() bool  { return o.Role == "reconciler" }
