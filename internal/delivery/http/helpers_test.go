package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/vogiaan1904/ticketbottle-gate/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/internal/repository/memory"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	"github.com/vogiaan1904/ticketbottle-gate/internal/ticket"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

var (
	keysOnce sync.Once
	privPEM  []byte
	pubPEM   []byte
)

func testKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	keysOnce.Do(func() {
		var err error
		privPEM, pubPEM, err = ticket.GenerateKeyPair(2048)
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}
	})
	return privPEM, pubPEM
}

type captureLog struct {
	mu      sync.Mutex
	entries []models.RequestLogEntry
}

func (c *captureLog) Log(ctx context.Context, e models.RequestLogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (c *captureLog) Run(ctx context.Context) error { return nil }

func (c *captureLog) last(t *testing.T) models.RequestLogEntry {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		t.Fatal("no request was logged")
	}
	return c.entries[len(c.entries)-1]
}

type gateFixture struct {
	router  chi.Router
	store   repo.QueueStateRepository
	cfgRepo repo.ConfigRepository
	logs    *captureLog
}

type fixtureOption func(global *models.GlobalConfig, queue *models.QueueRecord, opts *Options)

func newGateFixture(t *testing.T, fopts ...fixtureOption) *gateFixture {
	t.Helper()

	ctx := context.Background()
	l := logger.InitializeTestZapLogger()
	priv, pub := testKeys(t)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "origin", Value: "1"})
		io.WriteString(w, "origin:"+r.Header.Get(HeaderQueue)+":"+r.URL.Path)
	}))
	t.Cleanup(origin.Close)
	originURL, _ := url.Parse(origin.URL)

	global := models.DefaultGlobalConfig()
	global.Active = true
	global.AdminPassword = "pw"
	global.Queues = []models.RouteEntry{{Pattern: "^/shop", QueueName: "shop"}}
	global.Whitelist = []string{"/health"}

	automatic := 0
	queue := models.QueueRecord{QueueName: "shop", CookieName: "shop-queue", Automatic: &automatic}
	opts := Options{Origin: originURL, GeoHeader: "X-Geo", DebugHeader: "X-Debug"}

	for _, o := range fopts {
		o(&global, &queue, &opts)
	}

	cfgRepo := memory.NewConfigRepository()
	cfgRepo.SetGlobal(ctx, &global)
	cfgRepo.SetQueue(ctx, &queue)
	cfgRepo.SetSecret(ctx, "global_privateKey", string(priv))
	cfgRepo.SetSecret(ctx, "global_publicKey", string(pub))

	store := memory.NewQueueStateRepository()
	stores := service.StaticStoreProvider{Repo: store}

	cfgSvc := service.NewConfigService(cfgRepo, ticket.NewKeyCache(), service.RoutingLastMatch, l)
	admission := service.NewAdmissionService(ticket.NewCodec(), service.NewReleaseService(nil, l), nil, l)
	admin := service.NewAdminService(cfgSvc, stores, producer.NewNoopProducer(), nil, l)
	logs := &captureLog{}

	h := NewHandler(cfgSvc, admission, admin, stores, logs, opts, l)

	return &gateFixture{
		router:  NewRouter(h, l),
		store:   store,
		cfgRepo: cfgRepo,
		logs:    logs,
	}
}

func (f *gateFixture) do(t *testing.T, method, target string, body string, edit func(r *http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if edit != nil {
		edit(req)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func withCookie(c *http.Cookie) func(r *http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withAuth(pw string) func(r *http.Request) {
	return func(r *http.Request) { r.SetBasicAuth("admin", pw) }
}

// ticketFrom returns the gate's ticket cookie from a response, or nil.
func ticketFrom(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
