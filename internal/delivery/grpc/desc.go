package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	pkgGrpc "github.com/vogiaan1904/ticketbottle-gate/pkg/grpc"
)

type QueueAdminServer interface {
	GetQueueStats(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ReleaseVisitors(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var QueueAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: pkgGrpc.QueueAdminServiceName,
	HandlerType: (*QueueAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetQueueStats", Handler: getQueueStatsHandler},
		{MethodName: "ReleaseVisitors", Handler: releaseVisitorsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gate/admin/v1/queue_admin.proto",
}

func RegisterQueueAdminServer(s grpc.ServiceRegistrar, srv QueueAdminServer) {
	s.RegisterService(&QueueAdminServiceDesc, srv)
}

func getQueueStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueAdminServer).GetQueueStats(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pkgGrpc.GetQueueStatsFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueueAdminServer).GetQueueStats(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func releaseVisitorsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueAdminServer).ReleaseVisitors(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pkgGrpc.ReleaseVisitorsFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueueAdminServer).ReleaseVisitors(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
