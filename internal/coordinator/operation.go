// Package coordinator implements the generic Operation skeleton and its Get
// specialization: the deadline-bounded, quorum-aware engine that turns
// partial, concurrent, possibly-contradictory replica responses into a
// single definitive outcome.
package coordinator

import (
	"context"
	"time"

	"github.com/dreamware/ambry-coordinator/internal/blobid"
	"github.com/dreamware/ambry-coordinator/internal/connpool"
	"github.com/dreamware/ambry-coordinator/internal/wire"
)

// DecisionResult is what a DecisionCapability returns for one server
// response. It replaces checked-exception control flow from the original
// source with a plain tagged value the skeleton switches on.
type DecisionResult int

const (
	// Continue means try another replica; the response did not resolve the
	// operation one way or the other.
	Continue DecisionResult = iota
	// Succeed means the operation is done and this response's payload is
	// the answer.
	Succeed
	// Fail means the operation is done and has failed with a specific,
	// non-AmbryUnavailable error (e.g. a quorum of Not-Found/Deleted/Expired).
	Fail
)

// DecisionCapability is the per-operation-kind decision logic injected into
// the generic Operation skeleton. It replaces the abstract
// Operation-base-class-plus-subclass-override pattern from the original
// source with a single small interface, avoiding inheritance chains: Get,
// GetProperties, and GetUserMetadata all share one implementation of this
// interface (GetDecision) rather than being one subclass each of Operation.
// The interface only resolves server codes; each Get variant materializes
// its part of the winning GetResponse in the Coordinator.
type DecisionCapability interface {
	// OnServerError is invoked once per ServerError response, including
	// NoError. It returns Succeed, Continue, or Fail(err); the skeleton
	// never interprets server codes itself.
	OnServerError(replica blobid.ReplicaId, code wire.ServerErrorCode) (DecisionResult, *CoordinatorError)
}

// Operation is the generic, deadline-bounded fan-out skeleton: dispatch
// parallel requests up to the policy's limits, collect responses off one
// aggregation channel, apply the decision capability, and decide
// terminate/continue. Fan-out, deadline handling, and channel machinery are
// identical across operation kinds; only the decision logic varies.
type Operation struct {
	pool            connpool.Pool
	policy          OperationPolicy
	checkoutTimeout time.Duration
	template        wire.GetRequest
	decision        DecisionCapability
}

// NewOperation builds an Operation. checkoutTimeout bounds how long a single
// replica checkout may take; it should be small relative to the overall
// deadline so one slow replica cannot starve the others.
func NewOperation(pool connpool.Pool, policy OperationPolicy, checkoutTimeout time.Duration,
	template wire.GetRequest, decision DecisionCapability) *Operation {
	return &Operation{
		pool:            pool,
		policy:          policy,
		checkoutTimeout: checkoutTimeout,
		template:        template,
		decision:        decision,
	}
}

// Execute runs the operation to completion, bounded by deadline. It returns
// exactly one outcome: a successful GetResponse, or a CoordinatorError.
func (op *Operation) Execute(ctx context.Context, deadline time.Duration) (*wire.GetResponse, *CoordinatorError) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Buffered to exactly the parallelism cap: at most that many goroutines
	// are ever concurrently trying to send, so a send can never block even
	// if this loop has already returned and nobody is left to receive.
	responses := make(chan OperationResponse, op.policy.Parallelism())

	op.dispatchAsManyAsAllowed(ctx, responses)
	if op.policy.IsComplete() == Failed {
		return nil, newError(AmbryUnavailable, "partition has no replicas to try")
	}

	for {
		select {
		case resp := <-responses:
			result, cerr := op.handleResponse(resp)
			if cerr != nil {
				return nil, cerr
			}
			if result != nil {
				return result, nil
			}
			if op.policy.IsComplete() == Failed {
				return nil, newError(AmbryUnavailable, "all replicas exhausted without a quorum decision")
			}
			op.dispatchAsManyAsAllowed(ctx, responses)
		case <-ctx.Done():
			return nil, newError(OperationTimedOut, "deadline exceeded waiting for replica responses")
		}
	}
}

func (op *Operation) dispatchAsManyAsAllowed(ctx context.Context, responses chan<- OperationResponse) {
	for op.policy.MayDispatch() {
		replicaID, ok := op.policy.NextReplica()
		if !ok {
			return
		}
		op.policy.OnDispatch()
		go dispatchGetRequest(ctx, op.pool, replicaID, op.checkoutTimeout, op.template, responses)
	}
}

// handleResponse applies the policy and decision capability to one
// response. A non-nil result or error means the operation is done.
func (op *Operation) handleResponse(resp OperationResponse) (*wire.GetResponse, *CoordinatorError) {
	if resp.Outcome == OutcomeTransportError {
		op.policy.OnFailure()
		return nil, nil
	}

	decision, cerr := op.decision.OnServerError(resp.Replica, resp.Response.ServerError)
	switch decision {
	case Succeed:
		op.policy.OnSuccess()
		return resp.Response, nil
	case Fail:
		op.policy.OnFailure()
		return nil, cerr
	default: // Continue
		op.policy.OnFailure()
		return nil, nil
	}
}
