// Package replica defines the grpc service contract between the
// coordinator and a replica: the service descriptor, server registration,
// and the client-side Get call. The reference server implementation lives in
// internal/replicastore.
//
// The service descriptor below is hand-written rather than protoc-generated:
// the wire payloads are encoded with the msgpack codec from internal/wire,
// so there is no .proto/IDL step in this build. The shape mirrors what
// protoc-gen-go-grpc would emit for a one-method unary service.
package replica

import (
	"context"

	"google.golang.org/grpc"

	"github.com/dreamware/ambry-coordinator/internal/wire"
)

// ServiceName is the grpc service name replicas are registered under.
const ServiceName = "ambry.Replica"

const getMethod = "/" + ServiceName + "/Get"

// Server is implemented by anything that can answer a replica Get request:
// the reference replica server in internal/replicastore, or a test double.
type Server interface {
	Get(ctx context.Context, req *wire.GetRequest) (*wire.GetResponse, error)
}

// RegisterServer attaches srv to s under ServiceName.
func RegisterServer(s *grpc.Server, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Get",
			Handler:    getHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/replica/service.go",
}

func getHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wire.GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Get(ctx, req.(*wire.GetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Get invokes the Get RPC against an established connection, using the
// msgpack content subtype registered in internal/wire.
func Get(ctx context.Context, cc grpc.ClientConnInterface, req *wire.GetRequest) (*wire.GetResponse, error) {
	out := new(wire.GetResponse)
	if err := cc.Invoke(ctx, getMethod, req, out, grpc.CallContentSubtype(wire.CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}
