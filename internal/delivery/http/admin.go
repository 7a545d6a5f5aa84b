package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	pkgErrors "github.com/vogiaan1904/ticketbottle-gate/pkg/errors"
	resp "github.com/vogiaan1904/ticketbottle-gate/pkg/response"
)

const adminUser = "admin"

type adminCtxKey struct{}

type adminScope struct {
	global *models.GlobalConfig
	base   string
}

func scopeFrom(ctx context.Context) adminScope {
	s, _ := ctx.Value(adminCtxKey{}).(adminScope)
	return s
}

func (h *Handler) newAdminRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(h.rateLimit)

	r.Group(func(r chi.Router) {
		r.Use(h.requireGlobalAdmin)
		r.Get("/", h.showGlobalConfig)
		r.Post("/", h.updateGlobalConfig)
	})
	r.Get("/queues/{queue}", h.globalQueueAdmin)

	return r
}

// serveGlobalAdmin dispatches a request below the global admin path to the
// admin router, with the path made relative to it.
func (h *Handler) serveGlobalAdmin(w http.ResponseWriter, r *http.Request, global *models.GlobalConfig) {
	base := strings.TrimSuffix(global.AdminPath, "/")

	ctx := context.WithValue(r.Context(), adminCtxKey{}, adminScope{global: global, base: base})
	ctx = context.WithValue(ctx, chi.RouteCtxKey, chi.NewRouteContext())

	r2 := r.Clone(ctx)
	r2.URL.Path = strings.TrimPrefix(r.URL.Path, base)
	r2.URL.RawPath = ""
	if r2.URL.Path == "" {
		r2.URL.Path = "/"
	}

	h.adminMux.ServeHTTP(w, r2)
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			resp.Error(w, pkgErrors.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireGlobalAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, scopeFrom(r.Context()).global.AdminPassword) {
			unauthorized(w, "Global Queue Administration")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) showGlobalConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, err := h.admin.GlobalConfig(ctx)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.renderGlobalConfig(w, r, cfg)
}

func (h *Handler) updateGlobalConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patch, err := readPatch(r)
	if err != nil {
		h.l.Warnf(ctx, "delivery.http.Handler.updateGlobalConfig: %v", err)
		resp.Error(w, errInvalidConfig)
		return
	}

	// The form never echoes the password back, so blank means unchanged.
	if v, ok := patch["adminPassword"]; ok && v == "" {
		delete(patch, "adminPassword")
	}

	cfg, err := h.admin.UpdateGlobalConfig(ctx, patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.renderGlobalConfig(w, r, cfg)
}

func (h *Handler) renderGlobalConfig(w http.ResponseWriter, r *http.Request, cfg *models.GlobalConfig) {
	redacted := *cfg
	redacted.AdminPassword = ""

	if wantsJSON(r) {
		resp.JSON(w, http.StatusOK, redacted)
		return
	}

	var b strings.Builder
	if err := globalForm.Execute(&b, globalView{GlobalConfig: &redacted, Base: scopeFrom(r.Context()).base}); err != nil {
		h.l.Errorf(r.Context(), "delivery.http.Handler.renderGlobalConfig: %v", err)
		resp.Error(w, err)
		return
	}
	writeHTML(w, b.String())
}

// globalQueueAdmin serves a queue's admin view under the global admin path.
// Either the global or the queue's own password is accepted.
func (h *Handler) globalQueueAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := scopeFrom(ctx)
	name := chi.URLParam(r, "queue")

	cfg, err := h.cfgSvc.ResolveQueue(ctx, scope.global, name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.serveQueueAdmin(w, r, cfg, scope.base+"/queues/"+name, scope.global.AdminPassword, cfg.AdminPassword)
}

// serveQueueAdmin releases ?amt=N visitors and redirects back to base, or
// shows the queue's counters.
func (h *Handler) serveQueueAdmin(w http.ResponseWriter, r *http.Request, cfg *models.QueueConfig, base string, passwords ...string) {
	ctx := r.Context()

	if !authorized(r, passwords...) {
		unauthorized(w, "Queue Admin")
		return
	}

	if raw := r.URL.Query().Get("amt"); raw != "" {
		amt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || amt <= 0 {
			resp.Error(w, errInvalidAmount)
			return
		}

		if _, err := h.admin.Release(ctx, service.ReleaseInput{
			QueueName:   cfg.QueueName,
			Amount:      amt,
			Source:      kafka.ReleaseSourceHTTP,
			RequestedBy: adminUser,
		}); err != nil {
			h.respondError(w, r, err)
			return
		}

		http.Redirect(w, r, base, http.StatusFound)
		return
	}

	stats, err := h.admin.Stats(ctx, cfg.QueueName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if wantsJSON(r) {
		resp.JSON(w, http.StatusOK, stats)
		return
	}

	tpl := cfg.AdminPage
	if tpl == "" {
		tpl = defaultAdminPage
	}
	writeHTML(w, renderView(tpl, map[string]string{
		"adminBase":       base,
		"queueName":       cfg.QueueName,
		"visitorsWaiting": humanize.Comma(stats.VisitorsWaiting),
		"cursor":          humanize.Comma(stats.Cursor),
		"length":          humanize.Comma(stats.Length),
	}))
}

// authorized accepts Basic credentials admin:<password> for any of
// passwords. An empty password means no protection is configured.
func authorized(r *http.Request, passwords ...string) bool {
	user, pass, ok := r.BasicAuth()
	for _, want := range passwords {
		if want == "" {
			return true
		}
		if ok && user == adminUser && subtle.ConstantTimeCompare([]byte(pass), []byte(want)) == 1 {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
	resp.Error(w, pkgErrors.ErrUnauthorized)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") || r.URL.Query().Get("format") == "json"
}

// readPatch reads a global config patch from a form or a JSON object. For
// repeated form keys the last value wins, so a hidden "0" before a checkbox
// reads as unchecked.
func readPatch(r *http.Request) (map[string]string, error) {
	patch := make(map[string]string)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		for k, v := range body {
			switch v := v.(type) {
			case string:
				patch[k] = v
			case bool:
				patch[k] = strconv.FormatBool(v)
			case float64:
				patch[k] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				raw, err := json.Marshal(v)
				if err != nil {
					return nil, err
				}
				patch[k] = string(raw)
			}
		}
		return patch, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			patch[k] = vs[len(vs)-1]
		}
	}
	return patch, nil
}
