package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/ambry-coordinator/internal/blobid"
	"github.com/dreamware/ambry-coordinator/internal/connpool"
	"github.com/dreamware/ambry-coordinator/internal/metrics"
	replicarpc "github.com/dreamware/ambry-coordinator/internal/replica"
	"github.com/dreamware/ambry-coordinator/internal/wire"
)

// Outcome classifies one OperationResponse.
type Outcome int

const (
	// OutcomeServerError carries a decoded GetResponse, whatever its code —
	// including NoError. The Operation skeleton hands every one of these to
	// the decision capability, which is the single place that decides
	// success, continue, or a terminal quorum failure.
	OutcomeServerError Outcome = iota
	// OutcomeTransportError means the attempt never produced a usable
	// response: checkout failed, the RPC failed, or the frame could not be
	// decoded. The Operation always retries another replica for these.
	OutcomeTransportError
)

// OperationResponse is what one OperationRequest delivers to the aggregation
// channel, exactly once, regardless of how the attempt ended.
type OperationResponse struct {
	Replica  blobid.ReplicaId
	Outcome  Outcome
	Response *wire.GetResponse
	Err      error
}

// dispatchGetRequest performs one replica attempt for a GetOperation and
// posts exactly one OperationResponse to responses. It never panics and
// never blocks past the supplied checkoutTimeout plus the RPC's own
// deadline (derived from ctx).
func dispatchGetRequest(ctx context.Context, pool connpool.Pool, replicaID blobid.ReplicaId,
	checkoutTimeout time.Duration, template wire.GetRequest, responses chan<- OperationResponse) {

	req := template
	req.CorrelationID = uuid.NewString()

	conn, err := pool.Checkout(ctx, replicaID, checkoutTimeout)
	if err != nil {
		metrics.ReplicaOutcomes.WithLabelValues("transport_error").Inc()
		responses <- OperationResponse{Replica: replicaID, Outcome: OutcomeTransportError, Err: err}
		return
	}

	resp, err := replicarpc.Get(ctx, conn.ClientConn(), &req)
	if err != nil {
		pool.Destroy(conn)
		metrics.ReplicaOutcomes.WithLabelValues("transport_error").Inc()
		responses <- OperationResponse{Replica: replicaID, Outcome: OutcomeTransportError, Err: err}
		return
	}

	if len(resp.MessageInfoList) != 1 && resp.ServerError == wire.NoError {
		pool.Destroy(conn)
		metrics.ReplicaOutcomes.WithLabelValues("transport_error").Inc()
		responses <- OperationResponse{
			Replica: replicaID,
			Outcome: OutcomeTransportError,
			Err:     newError(UnexpectedInternalError, "message_info_list size %d != 1", len(resp.MessageInfoList)),
		}
		return
	}

	pool.Checkin(conn)

	metrics.ReplicaOutcomes.WithLabelValues(resp.ServerError.String()).Inc()
	responses <- OperationResponse{Replica: replicaID, Outcome: OutcomeServerError, Response: resp}
}
