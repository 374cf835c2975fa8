package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
mongoUri: mongodb://localhost:27017
brokerUri: amqp://localhost:5672
cacheUri: redis://localhost:6379
cacheFolders:
  - path: /var/cache/imagevault/0
    priority: 0
    maxSizeBytes: 1073741824
thumbnailTarget:
  w: 400
  h: 400
  quality: 80
cacheTarget:
  w: 1600
  h: 1600
  quality: 85
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, validConfig)

	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MonitorIntervalSec)
	assert.Equal(t, int64(86400000), cfg.MessageTTLMs)
	assert.Equal(t, 3, cfg.RetryMax)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Len(t, cfg.CacheFolders, 1)
}

func TestReadRejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, validConfig+"\nbogusField: true\n")

	_, err := Read(path)
	require.Error(t, err)
}

func TestReadRequiresCacheFolderCapacity(t *testing.T) {
	path := writeTempConfig(t, `
mongoUri: mongodb://localhost:27017
brokerUri: amqp://localhost:5672
cacheUri: redis://localhost:6379
cacheFolders:
  - path: /var/cache/imagevault/0
    priority: 0
    maxSizeBytes: 0
`)

	_, err := Read(path)
	require.Error(t, err)
}

func TestToOptionsCarriesFields(t *testing.T) {
	path := writeTempConfig(t, validConfig)
	cfg, err := Read(path)
	require.NoError(t, err)

	opts := cfg.ToOptions("worker")
	assert.Equal(t, "worker", opts.Role)
	assert.True(t, opts.IsWorker())
	assert.Equal(t, cfg.MongoURI, opts.MongoURI)
	assert.Equal(t, 400, opts.ThumbnailTarget.Width)
}
