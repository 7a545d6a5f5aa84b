package http

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
)

// Gate decides whether a request reaches the origin or gets the waiting room.
func (h *Handler) Gate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	entry := newLogEntry(r, h.opts.GeoHeader)
	logged := true
	defer func() {
		if logged {
			entry.ResponseStatus = sw.status
			h.reqLog.Log(ctx, entry)
		}
	}()

	global, err := h.cfgSvc.GlobalConfig(ctx)
	if err != nil {
		h.l.Warnf(ctx, "delivery.http.Handler.Gate: %v", err)
		h.bypass(sw, r, &entry, configBypassReason(err), "")
		return
	}

	if global.ForceDebug || (h.opts.DebugHeader != "" && r.Header.Get(h.opts.DebugHeader) != "") {
		ctx = h.l.WithDebug(ctx)
		r = r.WithContext(ctx)
	}
	h.l.Debugf(ctx, "Incoming request: %s", r.URL)

	path := r.URL.Path
	if h.cfgSvc.IsWhitelisted(global, path) {
		h.l.Debugf(ctx, "Whitelisted: %s", path)
		h.bypass(sw, r, &entry, models.BypassWhitelisted, "")
		return
	}

	if underPath(path, global.AdminPath) {
		logged = false
		h.serveGlobalAdmin(sw, r, global)
		return
	}

	queue, ok := h.cfgSvc.RouteQueue(ctx, global, path)
	if !ok {
		h.bypass(sw, r, &entry, models.BypassNoQueue, "")
		return
	}
	entry.QueueName = queue

	cfg, err := h.cfgSvc.ResolveQueue(ctx, global, queue)
	if err != nil {
		h.l.Warnf(ctx, "delivery.http.Handler.Gate: queue=%s: %v", queue, err)
		h.bypass(sw, r, &entry, configBypassReason(err), queue)
		return
	}

	if adminPath := cfg.QueueAdminPath(); adminPath != "" && path == adminPath {
		logged = false
		h.serveQueueAdmin(sw, r, cfg, adminPath, cfg.AdminPassword)
		return
	}

	store, err := h.stores.Store(ctx, cfg)
	if err != nil {
		h.bypass(sw, r, &entry, models.BypassStoreUnavailable, queue)
		return
	}

	d := h.admission.Admit(ctx, service.AdmitInput{
		Queue:   cfg,
		Store:   store,
		Token:   ticketCookie(r, cfg.CookieName),
		Country: r.Header.Get(h.opts.GeoHeader),
	})

	entry.Decision = d.Decision
	entry.BypassReason = d.BypassReason
	entry.Permitted = d.Permitted()
	entry.QueueCursor = d.Cursor
	entry.VisitorPosition = d.Position
	entry.StoreOps = d.Stats.StoreOps

	h.l.Debugf(ctx, "Visitor position=%d cursor=%d permitted=%v state=%s store_ops=%d store_ms=%d",
		d.Position, d.Cursor, d.Permitted(), d.TicketState, d.Stats.StoreOps, d.Stats.StoreTime.Milliseconds())

	if d.NewTicket != nil {
		// Added, not set, so origin cookies survive alongside ours.
		sw.Header().Add("Set-Cookie", newTicketCookie(cfg, d.NewTicket.Token).String())
	}

	if d.Permitted() {
		h.forward(sw, r, queue)
		return
	}

	h.waitPage(sw, cfg, d)
}

// configBypassReason tells a config store failure apart from an absent record.
func configBypassReason(err error) models.BypassReason {
	if errors.Is(err, service.ErrStoreUnavailable) {
		return models.BypassStoreUnavailable
	}
	return models.BypassConfigMissing
}

func (h *Handler) bypass(w http.ResponseWriter, r *http.Request, entry *models.RequestLogEntry, reason models.BypassReason, queue string) {
	entry.Decision = models.DecisionBypass
	entry.BypassReason = reason
	entry.Permitted = true
	h.forward(w, r, queue)
}

func newLogEntry(r *http.Request, geoHeader string) models.RequestLogEntry {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	return models.RequestLogEntry{
		Timestamp:        time.Now(),
		RequestID:        middleware.GetReqID(r.Context()),
		ClientAddress:    addr,
		RequestURL:       r.URL.String(),
		RequestMethod:    r.Method,
		RequestReferer:   r.Referer(),
		RequestUserAgent: r.UserAgent(),
		ClientGeoCountry: r.Header.Get(geoHeader),
	}
}

// underPath reports whether p is base or below it.
func underPath(p, base string) bool {
	if base == "" {
		return false
	}
	return p == base || strings.HasPrefix(p, strings.TrimSuffix(base, "/")+"/")
}
