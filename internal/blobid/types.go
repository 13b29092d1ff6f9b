// Package blobid defines the identifiers and cluster topology contracts that
// the coordinator operates over: blob ids, partitions, and replicas.
package blobid

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ReplicaId addresses one server process hosting a partition's data.
// Two ReplicaIds are equal iff their host, port and datacenter all match.
type ReplicaId struct {
	Host       string
	Port       int
	Datacenter string
}

func (r ReplicaId) String() string {
	return fmt.Sprintf("%s:%d@%s", r.Host, r.Port, r.Datacenter)
}

// Equal reports whether r and other address the same replica.
func (r ReplicaId) Equal(other ReplicaId) bool {
	return r.Host == other.Host && r.Port == other.Port && r.Datacenter == other.Datacenter
}

// Partition is a logical group of ReplicaIds jointly responsible for a range
// of blob ids. Membership is read-only during an operation.
type Partition struct {
	ID       string
	Replicas []ReplicaId
}

// ReplicaIds returns the partition's replica set.
func (p Partition) ReplicaIds() []ReplicaId {
	return p.Replicas
}

// BlobId is an opaque identifier that also names the Partition it lives in.
// It is totally ordered, encodable on the wire, and stable across retries.
type BlobId struct {
	PartitionID string
	Suffix      uuid.UUID
}

// NewBlobId allocates a fresh id within the given partition.
func NewBlobId(partitionID string) BlobId {
	return BlobId{PartitionID: partitionID, Suffix: uuid.New()}
}

// String renders the blob id as a stable, URL-safe text form:
// "<partition-id>." followed by a base32 encoding of the UUID bytes.
func (b BlobId) String() string {
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b.Suffix[:])
	return b.PartitionID + "." + strings.ToLower(enc)
}

// Compare provides a total order over BlobIds: first by partition id, then
// by the suffix bytes.
func (b BlobId) Compare(other BlobId) int {
	if c := strings.Compare(b.PartitionID, other.PartitionID); c != 0 {
		return c
	}
	for i := range b.Suffix {
		if b.Suffix[i] != other.Suffix[i] {
			if b.Suffix[i] < other.Suffix[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// ParseBlobId parses the text form produced by BlobId.String.
func ParseBlobId(s string) (BlobId, error) {
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return BlobId{}, fmt.Errorf("blobid: malformed id %q", s)
	}
	partitionID, suffix := s[:idx], s[idx+1:]
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(suffix))
	if err != nil {
		return BlobId{}, fmt.Errorf("blobid: malformed suffix in %q: %w", s, err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return BlobId{}, fmt.Errorf("blobid: malformed uuid in %q: %w", s, err)
	}
	return BlobId{PartitionID: partitionID, Suffix: id}, nil
}

// ClusterMap provides read-only lookup from partition id to the partition's
// current replica membership. It is effectively immutable during an
// operation; implementations must be safe for concurrent reads.
type ClusterMap interface {
	// PartitionFor returns the partition named by a blob id.
	PartitionFor(id BlobId) (Partition, error)
}

// ErrPartitionNotFound is returned by ClusterMap.PartitionFor when no
// partition is registered under the requested id.
type ErrPartitionNotFound struct {
	PartitionID string
}

func (e *ErrPartitionNotFound) Error() string {
	return fmt.Sprintf("blobid: unknown partition %q", e.PartitionID)
}

// StaticClusterMap is an in-memory ClusterMap built once at startup from
// configuration. It never mutates after construction, so reads require no
// synchronization.
type StaticClusterMap struct {
	partitions map[string]Partition
}

// NewStaticClusterMap builds a ClusterMap from a fixed list of partitions.
func NewStaticClusterMap(partitions []Partition) *StaticClusterMap {
	m := make(map[string]Partition, len(partitions))
	for _, p := range partitions {
		m[p.ID] = p
	}
	return &StaticClusterMap{partitions: m}
}

// PartitionFor implements ClusterMap.
func (c *StaticClusterMap) PartitionFor(id BlobId) (Partition, error) {
	p, ok := c.partitions[id.PartitionID]
	if !ok {
		return Partition{}, &ErrPartitionNotFound{PartitionID: id.PartitionID}
	}
	return p, nil
}
