package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

func TestGateForwardsWithoutQueue(t *testing.T) {
	f := newGateFixture(t)

	tests := []struct {
		path       string
		wantReason models.BypassReason
	}{
		{"/about", models.BypassNoQueue},
		{"/health", models.BypassWhitelisted},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "", nil)

			if rec.Code != http.StatusOK || rec.Body.String() != "origin::"+tt.path {
				t.Fatalf("got %d %q", rec.Code, rec.Body.String())
			}

			e := f.logs.last(t)
			if e.Decision != models.DecisionBypass || e.BypassReason != tt.wantReason || !e.Permitted {
				t.Fatalf("log entry = %+v", e)
			}
		})
	}
}

func TestGateQueuesNewVisitor(t *testing.T) {
	f := newGateFixture(t)

	rec := f.do(t, http.MethodGet, "/shop/item", "", func(r *http.Request) {
		r.Header.Set("X-Geo", "DE")
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("content type = %q", ct)
	}
	if got := rec.Header().Get("Refresh"); got != "15" {
		t.Errorf("Refresh = %q, want 15", got)
	}
	if body := rec.Body.String(); !strings.Contains(body, "There is 1 person ahead of you.") || !strings.Contains(body, "unknown") {
		t.Errorf("wait page = %s", body)
	}

	raw := rec.Header().Values("Set-Cookie")
	if len(raw) != 1 || !strings.HasPrefix(raw[0], "shop-queue=") ||
		!strings.HasSuffix(raw[0], "; Path=/; Max-Age=86400; HttpOnly; Secure; SameSite=None") {
		t.Fatalf("Set-Cookie = %q", raw)
	}

	e := f.logs.last(t)
	if e.Decision != models.DecisionWait || e.Permitted || e.VisitorPosition != 1 || e.QueueName != "shop" ||
		e.ClientGeoCountry != "DE" || e.StoreOps != 3 {
		t.Fatalf("log entry = %+v", e)
	}
}

func TestGateAdmitsAfterRelease(t *testing.T) {
	f := newGateFixture(t)

	first := f.do(t, http.MethodGet, "/shop", "", nil)
	tok := ticketFrom(first, "shop-queue")
	if tok == nil {
		t.Fatal("no ticket issued")
	}

	// Still waiting with the same ticket, and no new ticket.
	again := f.do(t, http.MethodGet, "/shop", "", withCookie(tok))
	if !strings.Contains(again.Body.String(), "ahead of you") || ticketFrom(again, "shop-queue") != nil {
		t.Fatalf("second request: %d %q %v", again.Code, again.Body.String(), again.Header().Values("Set-Cookie"))
	}

	f.store.IncrCursor(context.Background(), "shop", 1)

	rec := f.do(t, http.MethodGet, "/shop", "", withCookie(tok))
	if rec.Body.String() != "origin:shop:/shop" {
		t.Fatalf("body = %q, want the origin with the queue header", rec.Body.String())
	}
	if got := rec.Header().Values("Set-Cookie"); len(got) != 1 || !strings.HasPrefix(got[0], "origin=1") {
		t.Fatalf("Set-Cookie = %q, want only the origin cookie", got)
	}

	e := f.logs.last(t)
	if e.Decision != models.DecisionAdmit || !e.Permitted || e.QueueCursor != 1 || e.VisitorPosition != 1 {
		t.Fatalf("log entry = %+v", e)
	}
}

func TestGateKeepsOriginCookiesBesideTicket(t *testing.T) {
	f := newGateFixture(t)
	f.store.IncrCursor(context.Background(), "shop", 10)

	rec := f.do(t, http.MethodGet, "/shop", "", nil)

	cookies := rec.Header().Values("Set-Cookie")
	if len(cookies) != 2 {
		t.Fatalf("Set-Cookie = %q, want the ticket and the origin cookie", cookies)
	}
	if ticketFrom(rec, "shop-queue") == nil || ticketFrom(rec, "origin") == nil {
		t.Fatalf("Set-Cookie = %q", cookies)
	}
}

func TestGateIgnoresForgedQueueHeader(t *testing.T) {
	f := newGateFixture(t)

	rec := f.do(t, http.MethodGet, "/about", "", func(r *http.Request) {
		r.Header.Set(HeaderQueue, "vip")
	})
	if rec.Body.String() != "origin::/about" {
		t.Fatalf("body = %q, forged queue header reached the origin", rec.Body.String())
	}
}

func TestGateBypassesInactiveQueue(t *testing.T) {
	f := newGateFixture(t, func(_ *models.GlobalConfig, q *models.QueueRecord, _ *Options) {
		inactive := false
		q.Active = &inactive
	})

	rec := f.do(t, http.MethodGet, "/shop", "", nil)
	if rec.Body.String() != "origin:shop:/shop" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if e := f.logs.last(t); e.BypassReason != models.BypassInactive || e.StoreOps != 0 {
		t.Fatalf("log entry = %+v", e)
	}
}

func TestGateMissingQueueRecordFailsOpen(t *testing.T) {
	f := newGateFixture(t, func(g *models.GlobalConfig, _ *models.QueueRecord, _ *Options) {
		g.Queues = append(g.Queues, models.RouteEntry{Pattern: "^/tickets", QueueName: "tickets"})
	})

	rec := f.do(t, http.MethodGet, "/tickets", "", nil)
	if rec.Body.String() != "origin:tickets:/tickets" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if e := f.logs.last(t); e.BypassReason != models.BypassConfigMissing {
		t.Fatalf("log entry = %+v", e)
	}
}

type failingConfig struct {
	service.ConfigService
	err error
}

func (c failingConfig) GlobalConfig(context.Context) (*models.GlobalConfig, error) {
	return nil, c.err
}

func TestGateGlobalConfigErrorsFailOpen(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "origin:"+r.URL.Path)
	}))
	defer origin.Close()
	originURL, _ := url.Parse(origin.URL)

	tests := []struct {
		name string
		err  error
		want models.BypassReason
	}{
		{"store down", fmt.Errorf("%w: dial tcp: refused", service.ErrStoreUnavailable), models.BypassStoreUnavailable},
		{"no record", fmt.Errorf("%w: global config", service.ErrConfigNotFound), models.BypassConfigMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := logger.InitializeTestZapLogger()
			logs := &captureLog{}
			h := NewHandler(failingConfig{err: tt.err}, nil, nil, nil, logs, Options{Origin: originURL}, l)

			rec := httptest.NewRecorder()
			NewRouter(h, l).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shop", nil))

			if rec.Body.String() != "origin:/shop" {
				t.Fatalf("body = %q", rec.Body.String())
			}
			if e := logs.last(t); e.Decision != models.DecisionBypass || e.BypassReason != tt.want {
				t.Fatalf("log entry = %+v", e)
			}
		})
	}
}

func TestWaitPageRefreshesAtLeastEverySecond(t *testing.T) {
	f := newGateFixture(t, func(_ *models.GlobalConfig, q *models.QueueRecord, _ *Options) {
		zero := 0
		q.RefreshInterval = &zero
	})

	rec := f.do(t, http.MethodGet, "/shop", "", nil)
	if rec.Header().Get("Set-Cookie") == "" {
		t.Fatal("visitor was not queued")
	}
	if got := rec.Header().Get("Refresh"); got != "1" {
		t.Fatalf("Refresh = %q, want 1", got)
	}
}

func TestRenderView(t *testing.T) {
	got := renderView("<b>{{ visitorsAhead }}</b> {{visitorsVerb}} {{ unknown }}", map[string]string{
		"visitorsAhead": "1,234",
		"visitorsVerb":  "are",
	})
	if want := "<b>1,234</b> are {{ unknown }}"; got != want {
		t.Fatalf("renderView() = %q, want %q", got, want)
	}
}
