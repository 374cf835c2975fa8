// Package config loads the service-level YAML configuration recognized by
// the core (§6): store/broker/cache endpoints, cache folder roots,
// derivative render targets, and pipeline tuning knobs.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imagevault/imagevault/pkg/common"
	"sigs.k8s.io/yaml"
)

// ServiceConfig is the on-disk shape of the configuration described in
// spec §6. It decodes into common.ServiceOptions via ToOptions.
type ServiceConfig struct {
	MongoURI     string                       `json:"mongoUri"`
	BrokerURI    string                       `json:"brokerUri"`
	CacheURI     string                       `json:"cacheUri"`
	CacheFolders []common.CacheFolderConfig   `json:"cacheFolders"`

	ThumbnailTarget common.ImageTarget `json:"thumbnailTarget"`
	CacheTarget     common.ImageTarget `json:"cacheTarget"`

	MonitorIntervalSec int   `json:"monitorIntervalSec"`
	MessageTTLMs       int64 `json:"messageTtlMs"`
	RetryMax           int   `json:"retryMax"`

	ScanWorkerPoolSize      int `json:"scanWorkerPoolSize"`
	ImageWorkerPoolSize     int `json:"imageWorkerPoolSize"`
	ThumbnailWorkerPoolSize int `json:"thumbnailWorkerPoolSize"`
	CacheWorkerPoolSize     int `json:"cacheWorkerPoolSize"`

	LogLevel string `json:"logLevel"`
}

// Read loads and validates a ServiceConfig from path, following the
// teacher's read-file -> YAMLToJSON -> DisallowUnknownFields -> decode
// pipeline (pkg/config/load.go in the teacher repo).
func Read(path string) (ServiceConfig, error) {
	var cfg ServiceConfig

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return cfg, fmt.Errorf("yaml to json: %w", err)
	}

	dec := json.NewDecoder(bytes.NewBuffer(jsonData))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode service config: %w", err)
	}

	cfg = cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c ServiceConfig) applyDefaults() ServiceConfig {
	if c.MonitorIntervalSec == 0 {
		c.MonitorIntervalSec = 5
	}
	if c.MessageTTLMs == 0 {
		c.MessageTTLMs = 86400000
	}
	if c.RetryMax == 0 {
		c.RetryMax = 3
	}
	if c.ScanWorkerPoolSize == 0 {
		c.ScanWorkerPoolSize = 2
	}
	if c.ImageWorkerPoolSize == 0 {
		c.ImageWorkerPoolSize = 8
	}
	if c.ThumbnailWorkerPoolSize == 0 {
		c.ThumbnailWorkerPoolSize = 8
	}
	if c.CacheWorkerPoolSize == 0 {
		c.CacheWorkerPoolSize = 8
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// validate enforces the §6 constraint that at least one cache folder with
// positive capacity is configured.
func (c ServiceConfig) validate() error {
	if c.MongoURI == "" {
		return common.NewError(common.KindValidation, "config.Read", fmt.Errorf("mongoUri is required"))
	}
	if c.BrokerURI == "" {
		return common.NewError(common.KindValidation, "config.Read", fmt.Errorf("brokerUri is required"))
	}
	if c.CacheURI == "" {
		return common.NewError(common.KindValidation, "config.Read", fmt.Errorf("cacheUri is required"))
	}
	hasCapacity := false
	for _, f := range c.CacheFolders {
		if f.MaxSizeBytes > 0 {
			hasCapacity = true
			break
		}
	}
	if !hasCapacity {
		return common.NewError(common.KindValidation, "config.Read", fmt.Errorf("at least one cacheFolder with positive maxSizeBytes is required"))
	}
	return nil
}

// ToOptions builds the common.ServiceOptions this config's fields feed,
// with the process role supplied by the caller (pkg/cli's bootstrap, which
// sets the logger on the result afterwards).
func (c ServiceConfig) ToOptions(role string) common.ServiceOptions {
	return common.ServiceOptions{
		Role:                    role,
		MongoURI:                c.MongoURI,
		BrokerURI:               c.BrokerURI,
		CacheURI:                c.CacheURI,
		CacheFolders:            c.CacheFolders,
		ThumbnailTarget:         c.ThumbnailTarget,
		CacheTarget:             c.CacheTarget,
		MonitorIntervalSec:      c.MonitorIntervalSec,
		MessageTTLMs:            c.MessageTTLMs,
		RetryMax:                c.RetryMax,
		ScanWorkerPoolSize:      c.ScanWorkerPoolSize,
		ImageWorkerPoolSize:     c.ImageWorkerPoolSize,
		ThumbnailWorkerPoolSize: c.ThumbnailWorkerPoolSize,
		CacheWorkerPoolSize:     c.CacheWorkerPoolSize,
		LogLevel:                c.LogLevel,
	}
}
