package response

import (
	"errors"
	"net/http"

	pkgErrors "github.com/vogiaan1904/ticketbottle-gate/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Resp struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

func ParseHTTPError(err error) (int, Resp) {
	var parsedErr *pkgErrors.HTTPError
	if errors.As(err, &parsedErr) {
		statusCode := parsedErr.StatusCode
		if statusCode == 0 {
			statusCode = http.StatusBadRequest
		}

		return statusCode, Resp{
			ErrorCode: parsedErr.Code,
			Message:   parsedErr.Message,
		}
	}

	return http.StatusInternalServerError, Resp{
		ErrorCode: 500,
		Message:   "Internal server error",
	}
}

func ParseGRPCError(err error) error {
	var parsedErr *pkgErrors.GRPCError
	if errors.As(err, &parsedErr) {
		grpcCode := parsedErr.GrpcCode
		if grpcCode == 0 {
			grpcCode = codes.InvalidArgument
		}
		return status.Error(grpcCode, parsedErr.Error())
	}

	return status.Error(codes.Internal, "Internal server error")
}
