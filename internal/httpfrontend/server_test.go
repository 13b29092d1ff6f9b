package httpfrontend

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
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
	"github.com/dreamware/ambry-coordinator/internal/coordinator"
	"github.com/dreamware/ambry-coordinator/internal/replica"
	"github.com/dreamware/ambry-coordinator/internal/wire"
)

type fixedServer struct {
	resp *wire.GetResponse
}

func (s *fixedServer) Get(ctx context.Context, req *wire.GetRequest) (*wire.GetResponse, error) {
	return s.resp, nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l.WithField("test", true)
}

// newTestCoordinator wires one in-process replica (over bufconn) behind a
// single-partition cluster map, the minimal fixture needed to exercise the
// HTTP handlers against a real Coordinator rather than a stub.
func newTestCoordinator(t *testing.T, resp *wire.GetResponse) *coordinator.Coordinator {
	replicaID := blobid.ReplicaId{Host: "r", Port: 7000, Datacenter: "dc1"}
	lis := bufconn.Listen(1024 * 1024)
	gs := grpc.NewServer()
	replica.RegisterServer(gs, &fixedServer{resp: resp})
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	pool := connpool.NewGRPCPool(2).WithDialFunc(func(ctx context.Context, _ blobid.ReplicaId) (*grpc.ClientConn, error) {
		return grpc.DialContext(ctx, "bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithBlock(),
		)
	})

	cm := blobid.NewStaticClusterMap([]blobid.Partition{{ID: "p1", Replicas: []blobid.ReplicaId{replicaID}}})
	return coordinator.NewCoordinator(cm, pool, coordinator.Config{
		ClientID:         "test",
		LocalDatacenter:  "dc1",
		Parallelism:      1,
		SuccessTarget:    1,
		CheckoutTimeout:  time.Second,
		OperationTimeout: time.Second,
	}, testLogger())
}

func successResponse() *wire.GetResponse {
	return &wire.GetResponse{
		ServerError:     wire.NoError,
		MessageInfoList: []wire.MessageInfo{{BlobID: "b", Size: 3}},
		Payload:         []byte("abc"),
	}
}

func TestHandleBlobPayloadSuccess(t *testing.T) {
	coord := newTestCoordinator(t, successResponse())
	s := NewServer(coord, Config{HTTPPort: 0}, testLogger())

	id := blobid.NewBlobId("p1")
	req := httptest.NewRequest(http.MethodGet, "/v1/blobs/"+id.String(), nil)
	rec := httptest.NewRecorder()

	s.bounded(http.HandlerFunc(s.handleBlob)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", rec.Body.String())
}

func TestHandleBlobPropertiesSuccess(t *testing.T) {
	coord := newTestCoordinator(t, successResponse())
	s := NewServer(coord, Config{HTTPPort: 0}, testLogger())

	id := blobid.NewBlobId("p1")
	req := httptest.NewRequest(http.MethodGet, "/v1/blobs/"+id.String()+"/properties", nil)
	rec := httptest.NewRecorder()

	s.bounded(http.HandlerFunc(s.handleBlob)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"BlobID":"b"`)
}

func TestHandleBlobNotFoundMapsTo404(t *testing.T) {
	coord := newTestCoordinator(t, &wire.GetResponse{ServerError: wire.BlobNotFound})
	s := NewServer(coord, Config{HTTPPort: 0}, testLogger())

	id := blobid.NewBlobId("p1")
	req := httptest.NewRequest(http.MethodGet, "/v1/blobs/"+id.String(), nil)
	rec := httptest.NewRecorder()

	s.bounded(http.HandlerFunc(s.handleBlob)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleBlobDeletedMapsTo410(t *testing.T) {
	coord := newTestCoordinator(t, &wire.GetResponse{ServerError: wire.BlobDeleted})
	s := NewServer(coord, Config{HTTPPort: 0}, testLogger())

	id := blobid.NewBlobId("p1")
	req := httptest.NewRequest(http.MethodGet, "/v1/blobs/"+id.String(), nil)
	rec := httptest.NewRecorder()

	s.bounded(http.HandlerFunc(s.handleBlob)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestHandleBlobMalformedIDIsBadRequest(t *testing.T) {
	coord := newTestCoordinator(t, successResponse())
	s := NewServer(coord, Config{HTTPPort: 0}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/blobs/not-a-valid-id", nil)
	rec := httptest.NewRecorder()

	s.bounded(http.HandlerFunc(s.handleBlob)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBlobRefusedWhileDraining(t *testing.T) {
	coord := newTestCoordinator(t, successResponse())
	s := NewServer(coord, Config{HTTPPort: 0}, testLogger())
	s.draining.Store(true)

	id := blobid.NewBlobId("p1")
	req := httptest.NewRequest(http.MethodGet, "/v1/blobs/"+id.String(), nil)
	rec := httptest.NewRecorder()

	s.bounded(http.HandlerFunc(s.handleBlob)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealthOK(t *testing.T) {
	coord := newTestCoordinator(t, successResponse())
	s := NewServer(coord, Config{HTTPPort: 0}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
