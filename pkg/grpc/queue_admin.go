package grpc

import (
	"context"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The queue admin service is described by hand over well-known types, so
// neither side needs generated code.
const (
	QueueAdminServiceName     = "gate.admin.v1.QueueAdmin"
	GetQueueStatsFullMethod   = "/" + QueueAdminServiceName + "/GetQueueStats"
	ReleaseVisitorsFullMethod = "/" + QueueAdminServiceName + "/ReleaseVisitors"
)

type cleanupFunc func()

type QueueAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewQueueAdminClientFromConn(cc grpc.ClientConnInterface) *QueueAdminClient {
	return &QueueAdminClient{cc: cc}
}

func NewQueueAdminClient(addr string) (*QueueAdminClient, cleanupFunc, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Println("gRpc QueueAdmin client connection failed.", err)
		return nil, nil, err
	}

	return NewQueueAdminClientFromConn(conn), func() { conn.Close() }, nil
}

// GetQueueStats returns queue_name, cursor, length and visitors_waiting.
func (c *QueueAdminClient) GetQueueStats(ctx context.Context, queue string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetQueueStatsFullMethod, wrapperspb.String(queue), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseVisitors returns queue_name, amount, cursor and released_at.
func (c *QueueAdminClient) ReleaseVisitors(ctx context.Context, queue string, amount int64, requestedBy string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{
		"queue_name":   queue,
		"amount":       amount,
		"requested_by": requestedBy,
	})
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ReleaseVisitorsFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
