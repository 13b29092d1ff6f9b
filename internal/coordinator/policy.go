package coordinator

import "github.com/dreamware/ambry-coordinator/internal/blobid"

// Decision is the outcome of OperationPolicy.IsComplete.
type Decision int

const (
	Pending Decision = iota
	Succeeded
	Failed
)

// OperationPolicy decides which replica to try next and whether the
// operation has succeeded, failed, or must continue. Decoupling selection
// from decision lets the same Operation skeleton serve other quorum shapes
// (an N-of-M write policy for Put, at-least-one for Delete) by swapping the
// policy; only the Get policy is implemented in this package.
type OperationPolicy interface {
	// NextReplica returns the next replica to try, or ok=false when exhausted.
	NextReplica() (blobid.ReplicaId, bool)
	// MayDispatch reports whether another request may be started right now.
	MayDispatch() bool
	OnDispatch()
	OnSuccess()
	OnFailure()
	IsComplete() Decision
	Parallelism() int
}

// GetPolicy is the OperationPolicy used by GetOperation: local-DC replicas
// are tried before remote ones, and a single success is enough to satisfy
// success_target.
type GetPolicy struct {
	localDC string

	replicasLocal  []blobid.ReplicaId
	replicasRemote []blobid.ReplicaId

	inFlight      int
	successes     int
	failures      int
	parallelism   int
	successTarget int
}

// NewGetPolicy builds a GetPolicy over the partition's replicas, ordering
// local-datacenter replicas first.
func NewGetPolicy(localDC string, partition blobid.Partition, parallelism, successTarget int) *GetPolicy {
	p := &GetPolicy{
		localDC:       localDC,
		parallelism:   parallelism,
		successTarget: successTarget,
	}
	for _, r := range partition.Replicas {
		if r.Datacenter == localDC {
			p.replicasLocal = append(p.replicasLocal, r)
		} else {
			p.replicasRemote = append(p.replicasRemote, r)
		}
	}
	return p
}

// NextReplica implements OperationPolicy: local-DC replicas exhaust first.
func (p *GetPolicy) NextReplica() (blobid.ReplicaId, bool) {
	if len(p.replicasLocal) > 0 {
		r := p.replicasLocal[0]
		p.replicasLocal = p.replicasLocal[1:]
		return r, true
	}
	if len(p.replicasRemote) > 0 {
		r := p.replicasRemote[0]
		p.replicasRemote = p.replicasRemote[1:]
		return r, true
	}
	return blobid.ReplicaId{}, false
}

func (p *GetPolicy) remaining() int {
	return len(p.replicasLocal) + len(p.replicasRemote)
}

// MayDispatch implements OperationPolicy.
func (p *GetPolicy) MayDispatch() bool {
	return p.inFlight < p.parallelism && p.remaining() > 0
}

// OnDispatch implements OperationPolicy.
func (p *GetPolicy) OnDispatch() {
	p.inFlight++
}

// OnSuccess implements OperationPolicy.
func (p *GetPolicy) OnSuccess() {
	p.inFlight--
	p.successes++
}

// OnFailure implements OperationPolicy.
func (p *GetPolicy) OnFailure() {
	p.inFlight--
	p.failures++
}

// IsComplete implements OperationPolicy.
func (p *GetPolicy) IsComplete() Decision {
	if p.successes >= p.successTarget {
		return Succeeded
	}
	if p.remaining() == 0 && p.inFlight == 0 {
		return Failed
	}
	return Pending
}

// Parallelism implements OperationPolicy.
func (p *GetPolicy) Parallelism() int {
	return p.parallelism
}
