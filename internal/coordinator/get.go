package coordinator

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/ambry-coordinator/internal/blobid"
	"github.com/dreamware/ambry-coordinator/internal/connpool"
	"github.com/dreamware/ambry-coordinator/internal/metrics"
	"github.com/dreamware/ambry-coordinator/internal/wire"
)

// Minimum number of Blob_Deleted responses from servers necessary before
// returning Blob_Deleted to the caller.
const blobDeletedCountThreshold = 1

// Minimum number of Blob_Expired responses from servers necessary before
// returning Blob_Expired to the caller.
const blobExpiredCountThreshold = 2

// GetDecision is the DecisionCapability for Get operations. It is shared by
// the GetBlob, GetBlobProperties, and GetUserMetadata variants exposed on
// Coordinator — they differ only in which part of a successful GetResponse
// they materialize, not in how errors are resolved.
type GetDecision struct {
	replicaCount int

	notFoundCount int
	deletedCount  int
	expiredCount  int

	log *logrus.Entry
}

// NewGetDecision builds the decision logic for a partition with
// replicaCount replicas.
func NewGetDecision(replicaCount int, log *logrus.Entry) *GetDecision {
	return &GetDecision{replicaCount: replicaCount, log: log}
}

// OnServerError implements DecisionCapability.
//
// Not-found requires unanimity because any single replica might simply not
// yet have replicated a recent put; only when every replica agrees can the
// coordinator safely say the blob never existed. Deleted trusts a single
// report because delete markers replicate and a stale "not found" replica
// cannot override a fresher "deleted" one. Expired requires two reports
// because expiry is computed per replica from stored metadata, and a single
// anomalous clock/metadata read should not condemn the blob.
func (d *GetDecision) OnServerError(replica blobid.ReplicaId, code wire.ServerErrorCode) (DecisionResult, *CoordinatorError) {
	switch code {
	case wire.NoError:
		return Succeed, nil

	case wire.IOError, wire.DataCorrupt:
		return Continue, nil

	case wire.BlobNotFound:
		d.notFoundCount++
		if d.notFoundCount == d.replicaCount {
			d.log.Tracef("blob not found: notFoundCount == replicaCount == %d", d.notFoundCount)
			return Fail, newError(BlobDoesNotExist, "not found on all %d replicas", d.replicaCount)
		}
		return Continue, nil

	case wire.BlobDeleted:
		d.deletedCount++
		if d.deletedCount >= min(blobDeletedCountThreshold, d.replicaCount) {
			d.log.Tracef("blob deleted: deletedCount == %d >= min(threshold, replicaCount)", d.deletedCount)
			return Fail, newError(BlobDeleted, "deleted count %d reached threshold", d.deletedCount)
		}
		return Continue, nil

	case wire.BlobExpired:
		d.expiredCount++
		if d.expiredCount >= min(blobExpiredCountThreshold, d.replicaCount) {
			d.log.Tracef("blob expired: expiredCount == %d >= min(threshold, replicaCount)", d.expiredCount)
			return Fail, newError(BlobExpired, "expired count %d reached threshold", d.expiredCount)
		}
		return Continue, nil

	default:
		d.log.Errorf("replica %s returned unexpected server error code %v", replica, code)
		return Fail, newError(UnexpectedInternalError, "unexpected server error code %v from replica %s", code, replica)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// BlobProperties is the materialized result of GetBlobProperties.
type BlobProperties struct {
	BlobID    string
	Size      int64
	ExpiresAt int64
	Deleted   bool
}

// Coordinator exposes the three Get* operations consumed by the HTTP
// ingress. It owns no connections itself; it builds a fresh Operation (with
// fresh policy and decision state) per call, per the lifecycle rule that no
// operation state is shared across operations.
type Coordinator struct {
	clusterMap blobid.ClusterMap
	pool       connpool.Pool

	clientID string
	localDC  string

	parallelism      int
	successTarget    int
	checkoutTimeout  time.Duration
	operationTimeout time.Duration

	log *logrus.Entry
}

// Config bundles the tunables read from the coordinator configuration
// section (get_parallelism, get_success_target, operation_timeout_ms).
type Config struct {
	ClientID         string
	LocalDatacenter  string
	Parallelism      int
	SuccessTarget    int
	CheckoutTimeout  time.Duration
	OperationTimeout time.Duration
}

// NewCoordinator builds a Coordinator over the given cluster map and
// connection pool.
func NewCoordinator(clusterMap blobid.ClusterMap, pool connpool.Pool, cfg Config, log *logrus.Entry) *Coordinator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}
	if cfg.SuccessTarget <= 0 {
		cfg.SuccessTarget = 1
	}
	if cfg.CheckoutTimeout <= 0 {
		cfg.CheckoutTimeout = 2 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	return &Coordinator{
		clusterMap:       clusterMap,
		pool:             pool,
		clientID:         cfg.ClientID,
		localDC:          cfg.LocalDatacenter,
		parallelism:      cfg.Parallelism,
		successTarget:    cfg.SuccessTarget,
		checkoutTimeout:  cfg.CheckoutTimeout,
		operationTimeout: cfg.OperationTimeout,
		log:              log,
	}
}

func (c *Coordinator) runGet(ctx context.Context, id blobid.BlobId, flags wire.GetFlags) (*wire.GetResponse, *CoordinatorError) {
	start := time.Now()
	resp, cerr := c.doRunGet(ctx, id, flags)
	metrics.OperationLatencySeconds.WithLabelValues("get").Observe(time.Since(start).Seconds())
	if cerr != nil {
		metrics.OperationErrors.WithLabelValues(cerr.Kind.String()).Inc()
	}
	return resp, cerr
}

func (c *Coordinator) doRunGet(ctx context.Context, id blobid.BlobId, flags wire.GetFlags) (*wire.GetResponse, *CoordinatorError) {
	partition, err := c.clusterMap.PartitionFor(id)
	if err != nil {
		return nil, newError(UnexpectedInternalError, "%v", err)
	}

	opCtx := NewOperationContext(c.clientID, c.localDC)
	policy := NewGetPolicy(c.localDC, partition, c.parallelism, c.successTarget)
	decision := NewGetDecision(len(partition.Replicas), c.log.WithFields(logrus.Fields{
		"blob_id":      id.String(),
		"operation_id": opCtx.ID,
	}))
	template := wire.GetRequest{
		ClientID:    c.clientID,
		Flags:       flags,
		PartitionID: partition.ID,
		BlobIDs:     []string{id.String()},
	}

	op := NewOperation(c.pool, policy, c.checkoutTimeout, template, decision)
	return op.Execute(ctx, c.operationTimeout)
}

// GetBlob retrieves a blob's payload.
func (c *Coordinator) GetBlob(ctx context.Context, id blobid.BlobId) (io.ReadCloser, *CoordinatorError) {
	resp, err := c.runGet(ctx, id, wire.FlagBlob)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(resp.Payload)), nil
}

// GetBlobProperties retrieves a blob's metadata record.
func (c *Coordinator) GetBlobProperties(ctx context.Context, id blobid.BlobId) (*BlobProperties, *CoordinatorError) {
	resp, err := c.runGet(ctx, id, wire.FlagBlobProperties)
	if err != nil {
		return nil, err
	}
	if len(resp.MessageInfoList) != 1 {
		return nil, newError(UnexpectedInternalError, "message_info_list size %d != 1", len(resp.MessageInfoList))
	}
	mi := resp.MessageInfoList[0]
	return &BlobProperties{BlobID: mi.BlobID, Size: mi.Size, ExpiresAt: mi.ExpiresAt, Deleted: mi.Deleted}, nil
}

// GetUserMetadata retrieves a blob's user metadata bytes.
func (c *Coordinator) GetUserMetadata(ctx context.Context, id blobid.BlobId) ([]byte, *CoordinatorError) {
	resp, err := c.runGet(ctx, id, wire.FlagBlobUserMetadata)
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}
