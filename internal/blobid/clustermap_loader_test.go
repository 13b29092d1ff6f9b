package blobid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStaticClusterMapParsesPartitionsAndReplicas(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster.yaml")
	contents := `
partitions:
  - id: p1
    replicas:
      - host: r1.local
        port: 7000
        datacenter: dc1
      - host: r2.local
        port: 7000
        datacenter: dc2
  - id: p2
    replicas:
      - host: r3.local
        port: 7001
        datacenter: dc1
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cm, err := LoadStaticClusterMap(path)
	require.NoError(t, err)

	p1, err := cm.PartitionFor(BlobId{PartitionID: "p1"})
	require.NoError(t, err)
	assert.Len(t, p1.Replicas, 2)
	assert.Equal(t, "r1.local", p1.Replicas[0].Host)
	assert.Equal(t, "dc2", p1.Replicas[1].Datacenter)

	_, err = cm.PartitionFor(BlobId{PartitionID: "missing"})
	assert.Error(t, err)
}

func TestLoadStaticClusterMapMissingFile(t *testing.T) {
	_, err := LoadStaticClusterMap("/nonexistent/path.yaml")
	assert.Error(t, err)
}
