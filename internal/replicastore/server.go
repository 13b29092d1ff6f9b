package replicastore

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/ambry-coordinator/internal/wire"
)

// Server is the reference replica.Server implementation: it answers Get
// requests from persisted metadata and payload, applying the deleted/expired
// checks a real Ambry server applies before ever shipping bytes back.
type Server struct {
	blobs    BlobStore
	metadata MetadataStore
	cache    MetadataCache
	log      *logrus.Entry
	now      func() int64
}

// NewServer builds a Server over the given persistence layers. cache may be
// NoOpMetadataCache{} when no cache is configured.
func NewServer(blobs BlobStore, metadata MetadataStore, cache MetadataCache, log *logrus.Entry) *Server {
	if cache == nil {
		cache = NoOpMetadataCache{}
	}
	return &Server{blobs: blobs, metadata: metadata, cache: cache, log: log, now: nowUnixMs}
}

// Get implements replica.Server. Requests are documented as carrying one
// blob id per attempt; a request with any other count is a protocol
// violation and is reported as Data_Corrupt rather than guessed at.
func (s *Server) Get(ctx context.Context, req *wire.GetRequest) (*wire.GetResponse, error) {
	if len(req.BlobIDs) != 1 {
		s.log.Warnf("received request with %d blob ids, want 1", len(req.BlobIDs))
		return &wire.GetResponse{CorrelationID: req.CorrelationID, ServerError: wire.DataCorrupt}, nil
	}
	blobID := req.BlobIDs[0]

	info, err := s.lookupMessageInfo(ctx, blobID)
	if err != nil {
		if errors.Is(err, ErrMetadataNotFound) {
			return &wire.GetResponse{CorrelationID: req.CorrelationID, ServerError: wire.BlobNotFound}, nil
		}
		s.log.WithError(err).WithField("blob_id", blobID).Error("metadata lookup failed")
		return &wire.GetResponse{CorrelationID: req.CorrelationID, ServerError: wire.IOError}, nil
	}

	if info.Deleted {
		return &wire.GetResponse{CorrelationID: req.CorrelationID, ServerError: wire.BlobDeleted}, nil
	}
	if info.ExpiresAt != 0 && info.ExpiresAt <= s.now() {
		return &wire.GetResponse{CorrelationID: req.CorrelationID, ServerError: wire.BlobExpired}, nil
	}

	resp := &wire.GetResponse{
		CorrelationID:   req.CorrelationID,
		ServerError:     wire.NoError,
		MessageInfoList: []wire.MessageInfo{*info},
	}

	if req.Flags == wire.FlagBlob || req.Flags == wire.FlagAll {
		payload, err := s.blobs.Get(ctx, blobID)
		if err != nil {
			s.log.WithError(err).WithField("blob_id", blobID).Error("payload fetch failed")
			return &wire.GetResponse{CorrelationID: req.CorrelationID, ServerError: wire.IOError}, nil
		}
		resp.Payload = payload
	}

	return resp, nil
}

func (s *Server) lookupMessageInfo(ctx context.Context, blobID string) (*wire.MessageInfo, error) {
	if info, hit := s.cache.Get(ctx, blobID); hit {
		return info, nil
	}

	info, err := s.metadata.Get(ctx, blobID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, *info)
	return info, nil
}

// Put persists a new blob's payload and metadata. It is not reachable from
// the coordinator's read path (Put/Delete quorum policies are out of scope,
// per OperationPolicy's doc comment) but the reference server needs some way
// to seed data for demos and integration tests.
func (s *Server) Put(ctx context.Context, info wire.MessageInfo, payload []byte) error {
	if err := s.blobs.Put(ctx, info.BlobID, payload); err != nil {
		return err
	}
	return s.metadata.Put(ctx, info)
}

// Delete tombstones a blob, invalidating any cached metadata so the next
// Get observes the deletion rather than a stale cached copy.
func (s *Server) Delete(ctx context.Context, blobID string) error {
	if err := s.metadata.MarkDeleted(ctx, blobID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, blobID)
	return nil
}
