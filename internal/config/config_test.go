package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 2, cfg.Coordinator.GetParallelism)
	assert.Equal(t, 1, cfg.Coordinator.GetSuccessTarget)
	assert.Equal(t, "us-west-2", cfg.Replica.AWSRegion)
	assert.Equal(t, 3600, cfg.Replica.RedisTTLSeconds)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
server:
  http_port: 9000
coordinator:
  get_parallelism: 5
  local_datacenter: dc2
replica:
  s3_bucket: my-bucket
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 5, cfg.Coordinator.GetParallelism)
	assert.Equal(t, "dc2", cfg.Coordinator.LocalDatacenter)
	assert.Equal(t, "my-bucket", cfg.Replica.S3Bucket)
	// Defaults still apply to keys the file didn't set.
	assert.Equal(t, 1, cfg.Coordinator.GetSuccessTarget)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml", nil)
	assert.Error(t, err)
}

func TestLoadFlagOverridesTakePrecedence(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("server.http_port", 7777, "")
	require.NoError(t, fs.Set("server.http_port", "7777"))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.HTTPPort)
}
