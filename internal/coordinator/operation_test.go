package coordinator

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dreamware/ambry-coordinator/internal/blobid"
	"github.com/dreamware/ambry-coordinator/internal/connpool"
	"github.com/dreamware/ambry-coordinator/internal/replica"
	"github.com/dreamware/ambry-coordinator/internal/wire"
)

// scriptedServer answers every Get with the next entry in a fixed script,
// optionally blocking until released, so tests can pin down exactly how many
// replicas are contacted and in what order they answer.
type scriptedServer struct {
	mu       sync.Mutex
	script   []scriptedAnswer
	gate     <-chan struct{}
	dialed   int32
	released chan struct{}
}

type scriptedAnswer struct {
	resp *wire.GetResponse
	err  error
}

func (s *scriptedServer) Get(ctx context.Context, req *wire.GetRequest) (*wire.GetResponse, error) {
	atomic.AddInt32(&s.dialed, 1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return &wire.GetResponse{ServerError: wire.UnknownError}, nil
	}
	a := s.script[0]
	s.script = s.script[1:]
	return a.resp, a.err
}

// testCluster wires up one in-process grpc server per replica over bufconn,
// and a GRPCPool dialing through the matching listener.
type testCluster struct {
	t         *testing.T
	servers   map[blobid.ReplicaId]*scriptedServer
	listeners map[blobid.ReplicaId]*bufconn.Listener
	grpcSrvs  []*grpc.Server
	pool      *connpool.GRPCPool
}

func newTestCluster(t *testing.T, replicas []blobid.ReplicaId) *testCluster {
	tc := &testCluster{
		t:         t,
		servers:   make(map[blobid.ReplicaId]*scriptedServer),
		listeners: make(map[blobid.ReplicaId]*bufconn.Listener),
	}
	for _, r := range replicas {
		srv := &scriptedServer{}
		tc.servers[r] = srv

		lis := bufconn.Listen(1024 * 1024)
		tc.listeners[r] = lis

		gs := grpc.NewServer()
		replica.RegisterServer(gs, srv)
		tc.grpcSrvs = append(tc.grpcSrvs, gs)
		go gs.Serve(lis)
	}

	tc.pool = connpool.NewGRPCPool(4).WithDialFunc(func(ctx context.Context, r blobid.ReplicaId) (*grpc.ClientConn, error) {
		lis := tc.listeners[r]
		return grpc.DialContext(ctx, "bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithBlock(),
		)
	})

	t.Cleanup(func() {
		for _, gs := range tc.grpcSrvs {
			gs.Stop()
		}
	})

	return tc
}

func (tc *testCluster) script(r blobid.ReplicaId, answers ...scriptedAnswer) {
	tc.servers[r].script = answers
}

func (tc *testCluster) gateAll(gate <-chan struct{}) {
	for _, s := range tc.servers {
		s.gate = gate
	}
}

func ok(code wire.ServerErrorCode) scriptedAnswer {
	return scriptedAnswer{resp: &wire.GetResponse{
		ServerError:     code,
		MessageInfoList: []wire.MessageInfo{{BlobID: "b", Size: 1}},
		Payload:         []byte("x"),
	}}
}

func success() scriptedAnswer {
	return ok(wire.NoError)
}

func replicasFixture(n int, dc string) []blobid.ReplicaId {
	out := make([]blobid.ReplicaId, n)
	for i := range out {
		out[i] = blobid.ReplicaId{Host: "r", Port: 7000 + i, Datacenter: dc}
	}
	return out
}

func newTestLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l.WithField("test", true)
}

func runOperation(t *testing.T, tc *testCluster, replicas []blobid.ReplicaId, parallelism, successTarget int, deadline time.Duration) (*wire.GetResponse, *CoordinatorError) {
	return runOperationWithPool(t, tc.pool, replicas, parallelism, successTarget, deadline)
}

func runOperationWithPool(t *testing.T, pool connpool.Pool, replicas []blobid.ReplicaId, parallelism, successTarget int, deadline time.Duration) (*wire.GetResponse, *CoordinatorError) {
	partition := blobid.Partition{ID: "p1", Replicas: replicas}
	policy := NewGetPolicy("dc1", partition, parallelism, successTarget)
	decision := NewGetDecision(len(replicas), newTestLogger())
	template := wire.GetRequest{ClientID: "test", Flags: wire.FlagBlob, PartitionID: "p1", BlobIDs: []string{"p1.x"}}
	op := NewOperation(pool, policy, time.Second, template, decision)
	return op.Execute(context.Background(), deadline)
}

// Not-Found unanimity: all replicas must answer Blob_Not_Found.
func TestNotFoundRequiresUnanimity(t *testing.T) {
	replicas := replicasFixture(3, "dc1")
	tc := newTestCluster(t, replicas)
	tc.script(replicas[0], ok(wire.BlobNotFound))
	tc.script(replicas[1], ok(wire.BlobNotFound))
	tc.script(replicas[2], success())

	_, cerr := runOperation(t, tc, replicas, 3, 1, time.Second)
	require.Nil(t, cerr, "one success among not-found answers must win")
}

func TestNotFoundUnanimousFails(t *testing.T) {
	replicas := replicasFixture(2, "dc1")
	tc := newTestCluster(t, replicas)
	tc.script(replicas[0], ok(wire.BlobNotFound))
	tc.script(replicas[1], ok(wire.BlobNotFound))

	_, cerr := runOperation(t, tc, replicas, 2, 1, time.Second)
	require.NotNil(t, cerr)
	assert.Equal(t, BlobDoesNotExist, cerr.Kind)
}

// Deleted threshold: min(1, replica_count) — a single Blob_Deleted is enough.
func TestDeletedThresholdIsOne(t *testing.T) {
	replicas := replicasFixture(3, "dc1")
	tc := newTestCluster(t, replicas)
	tc.script(replicas[0], ok(wire.BlobDeleted))
	tc.script(replicas[1], ok(wire.BlobNotFound))
	tc.script(replicas[2], ok(wire.BlobNotFound))

	_, cerr := runOperation(t, tc, replicas, 3, 1, time.Second)
	require.NotNil(t, cerr)
	assert.Equal(t, BlobDeleted, cerr.Kind)
}

func TestDeletedThresholdOnSingleReplicaPartition(t *testing.T) {
	replicas := replicasFixture(1, "dc1")
	tc := newTestCluster(t, replicas)
	tc.script(replicas[0], ok(wire.BlobDeleted))

	_, cerr := runOperation(t, tc, replicas, 1, 1, time.Second)
	require.NotNil(t, cerr)
	assert.Equal(t, BlobDeleted, cerr.Kind)
}

// Expired threshold: min(2, replica_count).
func TestExpiredThresholdIsTwo(t *testing.T) {
	// Parallelism 1 forces replicas to be tried strictly in order, so a
	// single expired report (below the threshold of two) is guaranteed to
	// be resolved before the next replica is even contacted.
	replicas := replicasFixture(3, "dc1")
	tc := newTestCluster(t, replicas)
	tc.script(replicas[0], ok(wire.BlobExpired))
	tc.script(replicas[1], success())

	_, cerr := runOperation(t, tc, replicas, 1, 1, time.Second)
	require.Nil(t, cerr, "only one expired report so far plus a success should resolve to success")
}

func TestExpiredThresholdReached(t *testing.T) {
	replicas := replicasFixture(3, "dc1")
	tc := newTestCluster(t, replicas)
	tc.script(replicas[0], ok(wire.BlobExpired))
	tc.script(replicas[1], ok(wire.BlobExpired))

	_, cerr := runOperation(t, tc, replicas, 1, 1, time.Second)
	require.NotNil(t, cerr)
	assert.Equal(t, BlobExpired, cerr.Kind)
}

func TestExpiredThresholdOnSingleReplicaPartitionIsOne(t *testing.T) {
	replicas := replicasFixture(1, "dc1")
	tc := newTestCluster(t, replicas)
	tc.script(replicas[0], ok(wire.BlobExpired))

	_, cerr := runOperation(t, tc, replicas, 1, 1, time.Second)
	require.NotNil(t, cerr, "min(2, 1) == 1, so a single expired reply must be terminal")
	assert.Equal(t, BlobExpired, cerr.Kind)
}

// Success-wins: a No_Error response ends the operation immediately even
// with other replicas still outstanding or disagreeing.
func TestSuccessWinsOverPendingReplicas(t *testing.T) {
	replicas := replicasFixture(3, "dc1")
	tc := newTestCluster(t, replicas)
	tc.script(replicas[0], success())
	// replicas[1] and replicas[2] are never given a script; if contacted
	// they answer UnknownError, which would fail the operation — so success
	// must win before they are consulted under parallelism 1.

	resp, cerr := runOperation(t, tc, replicas, 1, 1, time.Second)
	require.Nil(t, cerr)
	require.NotNil(t, resp)
	assert.Equal(t, wire.NoError, resp.ServerError)
}

// Deadline boundedness: the operation must not run meaningfully longer than
// its deadline when replicas never answer.
func TestDeadlineBoundedness(t *testing.T) {
	replicas := replicasFixture(2, "dc1")
	tc := newTestCluster(t, replicas)
	tc.gateAll(make(chan struct{})) // never released
	tc.script(replicas[0], success())
	tc.script(replicas[1], success())

	deadline := 150 * time.Millisecond
	start := time.Now()
	_, cerr := runOperation(t, tc, replicas, 2, 1, deadline)
	elapsed := time.Since(start)

	require.NotNil(t, cerr)
	assert.Equal(t, OperationTimedOut, cerr.Kind)
	assert.Less(t, elapsed, deadline+500*time.Millisecond, "operation must return close to its deadline, not hang")
}

// Parallelism cap: at most `parallelism` requests may be in flight at once.
func TestParallelismCap(t *testing.T) {
	replicas := replicasFixture(5, "dc1")
	tc := newTestCluster(t, replicas)

	gate := make(chan struct{})
	tc.gateAll(gate)
	for _, r := range replicas {
		tc.script(r, ok(wire.BlobNotFound))
	}

	const parallelism = 2
	done := make(chan *CoordinatorError, 1)
	go func() {
		_, cerr := runOperation(t, tc, replicas, parallelism, 1, 2*time.Second)
		done <- cerr
	}()

	deadline := time.After(time.Second)
	for {
		current := int32(0)
		for _, s := range tc.servers {
			current += atomic.LoadInt32(&s.dialed)
		}
		if current >= int32(parallelism) {
			time.Sleep(50 * time.Millisecond)
			final := int32(0)
			for _, s := range tc.servers {
				final += atomic.LoadInt32(&s.dialed)
			}
			assert.LessOrEqual(t, final, int32(parallelism), "never more than parallelism in flight before the gate opens")
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the expected number of in-flight requests")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(gate)
	cerr := <-done
	require.NotNil(t, cerr)
	assert.Equal(t, BlobDoesNotExist, cerr.Kind)
}

// countingPool wraps a Pool to track whether every checkout is balanced by
// exactly one checkin or destroy.
type countingPool struct {
	connpool.Pool
	checkouts int32
	checkins  int32
	destroys  int32
}

func (p *countingPool) Checkout(ctx context.Context, r blobid.ReplicaId, timeout time.Duration) (connpool.Connection, error) {
	conn, err := p.Pool.Checkout(ctx, r, timeout)
	if err == nil {
		atomic.AddInt32(&p.checkouts, 1)
	}
	return conn, err
}

func (p *countingPool) Checkin(conn connpool.Connection) {
	atomic.AddInt32(&p.checkins, 1)
	p.Pool.Checkin(conn)
}

func (p *countingPool) Destroy(conn connpool.Connection) {
	atomic.AddInt32(&p.destroys, 1)
	p.Pool.Destroy(conn)
}

// Connection conservation: every checked-out connection is eventually
// checked in or destroyed, here for an operation in which every replica
// answers Blob_Not_Found and none satisfies it.
func TestConnectionConservation(t *testing.T) {
	replicas := replicasFixture(3, "dc1")
	tc := newTestCluster(t, replicas)
	tc.script(replicas[0], ok(wire.BlobNotFound))
	tc.script(replicas[1], ok(wire.BlobNotFound))
	tc.script(replicas[2], ok(wire.BlobNotFound))

	counting := &countingPool{Pool: tc.pool}
	_, cerr := runOperationWithPool(t, counting, replicas, 3, 1, time.Second)
	require.NotNil(t, cerr)

	checkouts := atomic.LoadInt32(&counting.checkouts)
	balanced := atomic.LoadInt32(&counting.checkins) + atomic.LoadInt32(&counting.destroys)
	assert.Equal(t, checkouts, balanced, "every checkout must be matched by exactly one checkin or destroy")
}
