package grpc

import (
	"context"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
	resp "github.com/vogiaan1904/ticketbottle-gate/pkg/response"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/util"
)

type grpcService struct {
	svc service.AdminService
	l   logger.Logger
}

func NewGrpcService(svc service.AdminService, l logger.Logger) QueueAdminServer {
	return &grpcService{
		svc: svc,
		l:   l,
	}
}

func (s *grpcService) GetQueueStats(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, resp.ParseGRPCError(errQueueNameRequired)
	}

	out, err := s.svc.Stats(ctx, req.GetValue())
	if err != nil {
		s.l.Errorf(ctx, "Failed to get queue stats: %v", err)
		err = s.mapGRPCError(err)
		return nil, resp.ParseGRPCError(err)
	}

	return structpb.NewStruct(map[string]any{
		"queue_name":       out.QueueName,
		"cursor":           out.Cursor,
		"length":           out.Length,
		"visitors_waiting": out.VisitorsWaiting,
	})
}

func (s *grpcService) ReleaseVisitors(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	name := fields["queue_name"].GetStringValue()
	if name == "" {
		return nil, resp.ParseGRPCError(errQueueNameRequired)
	}

	amount := fields["amount"].GetNumberValue()
	if amount != math.Trunc(amount) || amount < 1 {
		return nil, resp.ParseGRPCError(errInvalidAmount)
	}

	out, err := s.svc.Release(ctx, service.ReleaseInput{
		QueueName:   name,
		Amount:      int64(amount),
		Source:      kafka.ReleaseSourceGRPC,
		RequestedBy: fields["requested_by"].GetStringValue(),
	})
	if err != nil {
		s.l.Errorf(ctx, "Failed to release visitors: %v", err)
		err = s.mapGRPCError(err)
		return nil, resp.ParseGRPCError(err)
	}

	return structpb.NewStruct(map[string]any{
		"queue_name":  out.QueueName,
		"amount":      out.Amount,
		"cursor":      out.Cursor,
		"released_at": util.TimeToISO8601Str(out.ReleasedAt),
	})
}
