package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
)

type GRPCError struct {
	Message  string
	GrpcCode codes.Code
}

func NewGRPCError(code string, message string) *GRPCError {
	return &GRPCError{
		Message: fmt.Sprintf("%s - %s", code, message),
	}
}

// WithCode returns a copy answering with c instead of InvalidArgument.
func (e *GRPCError) WithCode(c codes.Code) *GRPCError {
	cp := *e
	cp.GrpcCode = c
	return &cp
}

func (e GRPCError) Error() string {
	return e.Message
}
