// Package wire defines the Ambry-shaped request/response structs exchanged
// between the coordinator and a replica, and the codec that puts them on
// the grpc transport.
package wire

// GetFlags selects which portion of a blob's message a GetRequest wants
// back. The server expects a list of blob ids for protocol uniformity even
// though the coordinator only ever sends batches of size 1.
type GetFlags int

const (
	FlagBlob GetFlags = iota
	FlagBlobProperties
	FlagBlobUserMetadata
	FlagAll
)

// ServerErrorCode mirrors the closed set of error codes a replica can
// report in a GetResponse. Any code outside this set is treated by the
// coordinator as UnexpectedInternalError.
type ServerErrorCode int

const (
	NoError ServerErrorCode = iota
	IOError
	DataCorrupt
	BlobNotFound
	BlobDeleted
	BlobExpired
	UnknownError
)

func (c ServerErrorCode) String() string {
	switch c {
	case NoError:
		return "No_Error"
	case IOError:
		return "IO_Error"
	case DataCorrupt:
		return "Data_Corrupt"
	case BlobNotFound:
		return "Blob_Not_Found"
	case BlobDeleted:
		return "Blob_Deleted"
	case BlobExpired:
		return "Blob_Expired"
	default:
		return "Unknown_Error"
	}
}

// GetRequest is sent by the coordinator to exactly one replica per attempt.
type GetRequest struct {
	CorrelationID string   `msgpack:"correlation_id"`
	ClientID      string   `msgpack:"client_id"`
	Flags         GetFlags `msgpack:"flags"`
	PartitionID   string   `msgpack:"partition_id"`
	BlobIDs       []string `msgpack:"blob_ids"`
}

// MessageInfo describes one persisted blob message as reported by a
// replica: its id, size, expiration, and tombstone state.
type MessageInfo struct {
	BlobID    string `msgpack:"blob_id"`
	Size      int64  `msgpack:"size"`
	ExpiresAt int64  `msgpack:"expires_at_unix_ms"` // 0 means no expiration
	Deleted   bool   `msgpack:"deleted"`
}

// GetResponse is a replica's answer to a GetRequest. When ServerError is
// NoError, MessageInfoList must contain exactly one entry and Payload
// carries the requested body; any other size is a protocol violation
// (Data_Corrupt).
type GetResponse struct {
	CorrelationID   string          `msgpack:"correlation_id"`
	ServerError     ServerErrorCode `msgpack:"server_error_code"`
	MessageInfoList []MessageInfo   `msgpack:"message_info_list"`
	Payload         []byte          `msgpack:"payload"`
}
