package http

import (
	"errors"
	"net/http"

	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	pkgErrors "github.com/vogiaan1904/ticketbottle-gate/pkg/errors"
	resp "github.com/vogiaan1904/ticketbottle-gate/pkg/response"
)

var (
	errInvalidAmount    = pkgErrors.NewHTTPError(40001, "Amount must be a positive integer")
	errInvalidConfig    = pkgErrors.NewHTTPError(40002, "Invalid configuration")
	errQueueNotFound    = pkgErrors.NewHTTPError(40401, "Queue not found").WithStatus(http.StatusNotFound)
	errStoreUnavailable = pkgErrors.NewHTTPError(50301, "Queue store unavailable").WithStatus(http.StatusServiceUnavailable)
)

func (h *Handler) mapHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return errInvalidAmount
	case errors.Is(err, service.ErrInvalidConfig):
		return errInvalidConfig
	case errors.Is(err, service.ErrConfigNotFound):
		return errQueueNotFound
	case errors.Is(err, service.ErrStoreUnavailable):
		return errStoreUnavailable
	default:
		return err
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.l.Errorf(r.Context(), "delivery.http.Handler: %v", err)
	resp.Error(w, h.mapHTTPError(err))
}
