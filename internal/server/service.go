package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "metadag.v1.GovernanceService"

// Full method names.
const (
	MethodSubmit    = "/" + ServiceName + "/Submit"
	MethodArbitrate = "/" + ServiceName + "/Arbitrate"
	MethodQuery     = "/" + ServiceName + "/Query"
	MethodVetoes    = "/" + ServiceName + "/Vetoes"
)

// GovernanceServer is the server side of the governance service. Every
// message is a google.protobuf.Struct carrying the JSON form of the
// corresponding Go type.
type GovernanceServer interface {
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Arbitrate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Vetoes(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes GovernanceService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GovernanceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unaryHandler(MethodSubmit, GovernanceServer.Submit)},
		{MethodName: "Arbitrate", Handler: unaryHandler(MethodArbitrate, GovernanceServer.Arbitrate)},
		{MethodName: "Query", Handler: unaryHandler(MethodQuery, GovernanceServer.Query)},
		{MethodName: "Vetoes", Handler: unaryHandler(MethodVetoes, GovernanceServer.Vetoes)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "metadag/v1/governance.proto",
}

type unaryMethod func(GovernanceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GovernanceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GovernanceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
