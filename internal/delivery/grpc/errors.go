package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"

	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	pkgErrors "github.com/vogiaan1904/ticketbottle-gate/pkg/errors"
)

var (
	errQueueNameRequired = pkgErrors.NewGRPCError("GTE001", "Queue name is required")
	errInvalidAmount     = pkgErrors.NewGRPCError("GTE002", "Amount must be a positive integer")
	errQueueNotFound     = pkgErrors.NewGRPCError("GTE003", "Queue not found").WithCode(codes.NotFound)
	errStoreUnavailable  = pkgErrors.NewGRPCError("GTE004", "Queue store unavailable").WithCode(codes.Unavailable)
)

func (s *grpcService) mapGRPCError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return errInvalidAmount
	case errors.Is(err, service.ErrConfigNotFound):
		return errQueueNotFound
	case errors.Is(err, service.ErrStoreUnavailable):
		return errStoreUnavailable
	default:
		return err
	}
}
