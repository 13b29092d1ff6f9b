package coordinator

import "github.com/google/uuid"

// OperationContext is the immutable per-operation envelope carried through
// every attempt: a stable correlation id for tracing this operation across
// retries, the client id, and the datacenter the request originated in.
//
// The wire-level correlation id sent to each replica is allocated
// per-attempt (see OperationRequest), not taken from this context directly;
// OperationContext.ID is for log/trace correlation across those attempts.
type OperationContext struct {
	ID               string
	ClientID         string
	DatacenterLocal  string
}

// NewOperationContext allocates a fresh context for one logical operation.
func NewOperationContext(clientID, datacenterLocal string) OperationContext {
	return OperationContext{
		ID:              uuid.NewString(),
		ClientID:        clientID,
		DatacenterLocal: datacenterLocal,
	}
}
