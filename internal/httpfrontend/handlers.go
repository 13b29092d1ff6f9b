package httpfrontend

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dreamware/ambry-coordinator/internal/blobid"
	"github.com/dreamware/ambry-coordinator/internal/coordinator"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleBlob dispatches GET /v1/blobs/{id}[/properties|/usermetadata] to the
// matching Coordinator operation.
func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.draining.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/blobs/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	id, err := blobid.ParseBlobId(parts[0])
	if err != nil {
		http.Error(w, "malformed blob id", http.StatusBadRequest)
		return
	}

	var suffix string
	if len(parts) == 2 {
		suffix = parts[1]
	}

	switch suffix {
	case "":
		s.serveBlobPayload(w, r, id)
	case "properties":
		s.serveBlobProperties(w, r, id)
	case "usermetadata":
		s.serveUserMetadata(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveBlobPayload(w http.ResponseWriter, r *http.Request, id blobid.BlobId) {
	rc, cerr := s.coord.GetBlob(r.Context(), id)
	if cerr != nil {
		writeCoordinatorError(w, cerr)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rc); err != nil {
		s.log.WithError(err).Warn("error streaming blob payload")
	}
}

func (s *Server) serveBlobProperties(w http.ResponseWriter, r *http.Request, id blobid.BlobId) {
	props, cerr := s.coord.GetBlobProperties(r.Context(), id)
	if cerr != nil {
		writeCoordinatorError(w, cerr)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(props)
}

func (s *Server) serveUserMetadata(w http.ResponseWriter, r *http.Request, id blobid.BlobId) {
	data, cerr := s.coord.GetUserMetadata(r.Context(), id)
	if cerr != nil {
		writeCoordinatorError(w, cerr)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// writeCoordinatorError maps a CoordinatorError's ErrorKind to the HTTP
// status a caller of a blob-store read path expects.
func writeCoordinatorError(w http.ResponseWriter, err *coordinator.CoordinatorError) {
	status := http.StatusInternalServerError
	switch err.Kind {
	case coordinator.BlobDoesNotExist:
		status = http.StatusNotFound
	case coordinator.BlobDeleted, coordinator.BlobExpired:
		status = http.StatusGone
	case coordinator.AmbryUnavailable:
		status = http.StatusServiceUnavailable
	case coordinator.OperationTimedOut:
		status = http.StatusGatewayTimeout
	case coordinator.UnexpectedInternalError:
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}
