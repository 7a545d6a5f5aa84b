package http

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

// HeaderQueue tells the origin which queue admitted the request.
const HeaderQueue = "X-Waitroom-Queue"

type Options struct {
	Origin      *url.URL
	GeoHeader   string
	DebugHeader string
	// AdminRate limits admin requests per second across all clients. Zero disables the limit.
	AdminRate  float64
	AdminBurst int
}

type Handler struct {
	cfgSvc    service.ConfigService
	admission service.AdmissionService
	admin     service.AdminService
	stores    service.StoreProvider
	reqLog    service.RequestLogService
	opts      Options
	l         logger.Logger

	proxy    *httputil.ReverseProxy
	adminMux chi.Router
	limiter  *rate.Limiter
}

func NewHandler(
	cfgSvc service.ConfigService,
	admission service.AdmissionService,
	admin service.AdminService,
	stores service.StoreProvider,
	reqLog service.RequestLogService,
	opts Options,
	l logger.Logger,
) *Handler {
	h := &Handler{
		cfgSvc:    cfgSvc,
		admission: admission,
		admin:     admin,
		stores:    stores,
		reqLog:    reqLog,
		opts:      opts,
		l:         l,
	}

	if opts.AdminRate > 0 {
		burst := opts.AdminBurst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.AdminRate), burst)
	}

	h.proxy = h.newProxy(opts.Origin)
	h.adminMux = h.newAdminRouter()

	return h
}

type queueCtxKey struct{}

func (h *Handler) newProxy(origin *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
			pr.SetXForwarded()

			pr.Out.Header.Del(HeaderQueue)
			if q, _ := pr.In.Context().Value(queueCtxKey{}).(string); q != "" {
				pr.Out.Header.Set(HeaderQueue, q)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			h.l.Errorf(r.Context(), "delivery.http.Handler.forward: %v", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

// forward passes the request to the origin. queue may be empty.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, queue string) {
	ctx := context.WithValue(r.Context(), queueCtxKey{}, queue)
	h.proxy.ServeHTTP(w, r.WithContext(ctx))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
