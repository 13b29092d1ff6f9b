// Package connpool implements the ConnectionPool contract used by the
// coordinator: checkout and checkin of a transport to a specific replica
// endpoint, with a timeout on checkout and process-wide sharing across
// operations.
//
// gRPC already multiplexes many RPCs over one TCP connection, so "checking
// out a connection" here means leasing one of a bounded number of
// concurrent-use slots on a shared *grpc.ClientConn per replica, not
// dialing a fresh socket per attempt. This keeps the checkout/checkin/
// destroy vocabulary of a connection pool while fitting how gRPC
// connections are actually meant to be used.
package connpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dreamware/ambry-coordinator/internal/blobid"
)

// ErrUnreachable is returned by Checkout when dialing the replica fails.
type ErrUnreachable struct {
	Replica blobid.ReplicaId
	Cause   error
}

func (e *ErrUnreachable) Error() string {
	return fmt.Sprintf("connpool: replica %s unreachable: %v", e.Replica, e.Cause)
}

func (e *ErrUnreachable) Unwrap() error { return e.Cause }

// ErrCheckoutTimeout is returned by Checkout when no slot became free
// before the supplied timeout elapsed.
type ErrCheckoutTimeout struct {
	Replica blobid.ReplicaId
}

func (e *ErrCheckoutTimeout) Error() string {
	return fmt.Sprintf("connpool: checkout of replica %s timed out", e.Replica)
}

// Connection is a leased handle to a replica's transport. It must be
// returned with exactly one of Pool.Checkin or Pool.Destroy.
type Connection interface {
	// ClientConn exposes the underlying grpc connection for invoking RPCs.
	ClientConn() grpc.ClientConnInterface
	// Replica reports which replica this connection addresses.
	Replica() blobid.ReplicaId
}

// Pool is the ConnectionPool contract: borrow and return a transport to a
// specific replica endpoint with a timeout. It is process-wide and must be
// safe for concurrent use by many operations at once; fairness across
// operations is the pool's concern, not the coordinator's.
type Pool interface {
	Checkout(ctx context.Context, replica blobid.ReplicaId, timeout time.Duration) (Connection, error)
	Checkin(conn Connection)
	Destroy(conn Connection)
}

// DialFunc opens a connection to a replica endpoint. Production code uses
// grpcDial; tests substitute an in-process dialer (e.g. bufconn).
type DialFunc func(ctx context.Context, replica blobid.ReplicaId) (*grpc.ClientConn, error)

// GRPCPool is the concrete Pool implementation used in production: one
// shared *grpc.ClientConn per replica, with a bounded number of concurrent
// leases enforced by a per-replica semaphore.
type GRPCPool struct {
	dial          DialFunc
	leasesPerConn int

	mu       sync.Mutex
	replicas map[blobid.ReplicaId]*replicaSlot
}

type replicaSlot struct {
	mu  sync.Mutex
	cc  *grpc.ClientConn
	sem chan struct{}
}

// NewGRPCPool builds a pool that dials replicas with grpc's insecure
// transport credentials (replica traffic runs over a trusted internal
// network) and allows up to leasesPerConn concurrent outstanding RPCs per
// replica connection.
func NewGRPCPool(leasesPerConn int) *GRPCPool {
	if leasesPerConn <= 0 {
		leasesPerConn = 8
	}
	p := &GRPCPool{
		leasesPerConn: leasesPerConn,
		replicas:      make(map[blobid.ReplicaId]*replicaSlot),
	}
	p.dial = p.grpcDial
	return p
}

// WithDialFunc overrides how replica connections are dialed; used by tests.
func (p *GRPCPool) WithDialFunc(dial DialFunc) *GRPCPool {
	p.dial = dial
	return p
}

func (p *GRPCPool) grpcDial(ctx context.Context, replica blobid.ReplicaId) (*grpc.ClientConn, error) {
	addr := fmt.Sprintf("%s:%d", replica.Host, replica.Port)
	return grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
}

func (p *GRPCPool) slotFor(replica blobid.ReplicaId) *replicaSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.replicas[replica]
	if !ok {
		s = &replicaSlot{sem: make(chan struct{}, p.leasesPerConn)}
		p.replicas[replica] = s
	}
	return s
}

// Checkout implements Pool.
func (p *GRPCPool) Checkout(ctx context.Context, replica blobid.ReplicaId, timeout time.Duration) (Connection, error) {
	slot := p.slotFor(replica)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case slot.sem <- struct{}{}:
	case <-waitCtx.Done():
		return nil, &ErrCheckoutTimeout{Replica: replica}
	}

	slot.mu.Lock()
	cc := slot.cc
	if cc == nil {
		dialCtx, dialCancel := context.WithTimeout(ctx, timeout)
		newCC, err := p.dial(dialCtx, replica)
		dialCancel()
		if err != nil {
			slot.mu.Unlock()
			<-slot.sem
			return nil, &ErrUnreachable{Replica: replica, Cause: err}
		}
		slot.cc = newCC
		cc = newCC
	}
	slot.mu.Unlock()

	return &grpcConnection{pool: p, slot: slot, replica: replica, cc: cc}, nil
}

// Checkin implements Pool: the connection is healthy and returned for reuse.
func (p *GRPCPool) Checkin(conn Connection) {
	c, ok := conn.(*grpcConnection)
	if !ok {
		return
	}
	<-c.slot.sem
}

// Destroy implements Pool: the connection is unhealthy and discarded; the
// next Checkout for this replica redials.
func (p *GRPCPool) Destroy(conn Connection) {
	c, ok := conn.(*grpcConnection)
	if !ok {
		return
	}
	c.slot.mu.Lock()
	if c.slot.cc == c.cc {
		_ = c.cc.Close()
		c.slot.cc = nil
	}
	c.slot.mu.Unlock()
	<-c.slot.sem
}

type grpcConnection struct {
	pool    *GRPCPool
	slot    *replicaSlot
	replica blobid.ReplicaId
	cc      *grpc.ClientConn
}

func (c *grpcConnection) ClientConn() grpc.ClientConnInterface { return c.cc }
func (c *grpcConnection) Replica() blobid.ReplicaId            { return c.replica }
