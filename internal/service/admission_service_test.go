package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
)

func TestAdmitNewVisitorWaits(t *testing.T) {
	e := newEngine(t)
	cfg := testQueue(t)

	d := e.admit(cfg, "")

	if d.Decision != models.DecisionWait {
		t.Fatalf("decision = %s, want wait", d.Decision)
	}
	if d.TicketState != models.TicketStateNone {
		t.Errorf("ticket state = %s, want %s", d.TicketState, models.TicketStateNone)
	}
	if d.Position != 1 || d.Cursor != 0 || d.VisitorsAhead != 1 {
		t.Errorf("position/cursor/ahead = %d/%d/%d, want 1/0/1", d.Position, d.Cursor, d.VisitorsAhead)
	}
	if d.EstimatedWaitText != "unknown" {
		t.Errorf("estimated wait = %q, want unknown without automatic release", d.EstimatedWaitText)
	}
	if d.NewTicket == nil {
		t.Fatal("new visitor got no ticket")
	}
	if !d.NewTicket.Expiry.Equal(e.clock.Now().Add(cfg.CookieExpiry)) {
		t.Errorf("ticket expiry = %v, want now + cookieExpiry", d.NewTicket.Expiry)
	}
	// incr length, reserve, get cursor
	if d.Stats.StoreOps != 3 {
		t.Errorf("store ops = %d, want 3", d.Stats.StoreOps)
	}

	pos, found, _ := e.store.GetReservation(context.Background(), repo.ReservationKey("shop", d.UUID))
	if !found || pos != 1 {
		t.Fatalf("reservation = %d (found=%v), want 1", pos, found)
	}
	if _, err := uuid.Parse(d.UUID); err != nil {
		t.Fatalf("visitor id %q is not a UUID: %v", d.UUID, err)
	}
}

func TestAdmitFreshTicketIsReused(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	cfg := testQueue(t)

	first := e.admit(cfg, "")
	e.store.IncrCursor(ctx, "shop", 1)
	e.clock.Advance(time.Minute)

	d := e.admit(cfg, first.NewTicket.Token)

	if d.Decision != models.DecisionAdmit {
		t.Fatalf("decision = %s, want admit", d.Decision)
	}
	if d.TicketState != models.TicketStateValidFresh {
		t.Errorf("ticket state = %s, want %s", d.TicketState, models.TicketStateValidFresh)
	}
	if d.NewTicket != nil {
		t.Error("fresh ticket was reissued")
	}
	if d.UUID != first.UUID || d.Position != first.Position {
		t.Errorf("visitor changed: %s/%d, want %s/%d", d.UUID, d.Position, first.UUID, first.Position)
	}
	// get reservation, get cursor
	if d.Stats.StoreOps != 2 {
		t.Errorf("store ops = %d, want 2", d.Stats.StoreOps)
	}

	length, _ := e.store.GetLength(ctx, "shop")
	if length != 1 {
		t.Fatalf("length = %d, want 1", length)
	}
}

func TestAdmitNearExpiryTicketIsRefreshed(t *testing.T) {
	e := newEngine(t)
	cfg := testQueue(t)

	first := e.admit(cfg, "")
	// 10 seconds left on a 86400 second ticket with a 15 second refresh window.
	e.clock.Advance(cfg.CookieExpiry - 10*time.Second)

	store := &faultyStore{QueueStateRepository: e.store}
	d := e.svc.Admit(context.Background(), AdmitInput{Queue: cfg, Store: store, Token: first.NewTicket.Token})

	if d.TicketState != models.TicketStateValidNearExpiry {
		t.Fatalf("ticket state = %s, want %s", d.TicketState, models.TicketStateValidNearExpiry)
	}
	if d.NewTicket == nil {
		t.Fatal("near-expiry ticket was not reissued")
	}
	if d.NewTicket.UUID != first.UUID || d.NewTicket.Position != first.Position {
		t.Errorf("reissued ticket changed identity: %s/%d", d.NewTicket.UUID, d.NewTicket.Position)
	}
	if want := e.clock.Now().Add(86400 * time.Second); !d.NewTicket.Expiry.Equal(want) {
		t.Errorf("reissued expiry = %v, want %v", d.NewTicket.Expiry, want)
	}
	if store.refreshTTL != 86400000*time.Millisecond {
		t.Errorf("reservation ttl refreshed to %v, want 86400000ms", store.refreshTTL)
	}

	// The refreshed reservation outlives the original one.
	e.clock.Advance(time.Hour)
	again := e.admit(cfg, d.NewTicket.Token)
	if again.TicketState != models.TicketStateValidFresh || again.Position != first.Position {
		t.Fatalf("refreshed ticket state = %s position = %d", again.TicketState, again.Position)
	}
}

func TestAdmitRejectsTicketWithoutReservation(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	cfg := testQueue(t)

	first := e.admit(cfg, "")
	key := repo.ReservationKey("shop", first.UUID)
	e.store.ExpireAfter(ctx, key, time.Millisecond)
	e.clock.Advance(time.Second)

	d := e.admit(cfg, first.NewTicket.Token)

	if d.TicketState != models.TicketStateInvalid {
		t.Fatalf("ticket state = %s, want %s", d.TicketState, models.TicketStateInvalid)
	}
	if d.UUID == first.UUID {
		t.Error("stale ticket kept its visitor id")
	}
	if d.Position != 2 {
		t.Errorf("position = %d, want a new position 2", d.Position)
	}
	if d.NewTicket == nil {
		t.Error("stale ticket was not replaced")
	}
}

func TestAdmitTicketAuthenticityAndValidity(t *testing.T) {
	e := newEngine(t)
	cfg := testQueue(t)
	first := e.admit(cfg, "")
	expiry := e.clock.Now().Add(time.Hour)

	forger := *cfg
	forger.PrivateKey = testKeys(t)[1].priv
	forged, err := e.codec.Sign(&forger, first.UUID, first.Position, expiry)
	if err != nil {
		t.Fatal(err)
	}

	// Authentic signature, but the store holds a different position.
	mismatched, err := e.codec.Sign(cfg, first.UUID, first.Position+4, expiry)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "signed with another key", token: forged},
		{name: "position not reserved", token: mismatched},
		{name: "garbage", token: "not-a-ticket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.admit(cfg, tt.token)
			if d.TicketState != models.TicketStateInvalid {
				t.Fatalf("ticket state = %s, want %s", d.TicketState, models.TicketStateInvalid)
			}
			if d.NewTicket == nil || d.UUID == first.UUID {
				t.Fatal("invalid ticket did not produce a new visitor")
			}
		})
	}
}

func TestAdmitBypasses(t *testing.T) {
	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*models.QueueConfig)
		country string
		want    models.BypassReason
	}{
		{name: "inactive", mutate: func(c *models.QueueConfig) { c.Active = false }, want: models.BypassInactive},
		{name: "expired", mutate: func(c *models.QueueConfig) { c.Expires = &past }, want: models.BypassExpired},
		{
			name:    "geo exempt",
			mutate:  func(c *models.QueueConfig) { c.Geocodes = []string{"CA", "us"} },
			country: "US",
			want:    models.BypassGeoExempt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			cfg := testQueue(t)
			tt.mutate(cfg)

			d := e.svc.Admit(context.Background(), AdmitInput{Queue: cfg, Store: e.store, Country: tt.country})

			if d.Decision != models.DecisionBypass || d.BypassReason != tt.want {
				t.Fatalf("decision = %s(%s), want bypass(%s)", d.Decision, d.BypassReason, tt.want)
			}
			if !d.Permitted() {
				t.Error("bypass must be permitted")
			}
			if d.Stats.StoreOps != 0 || d.NewTicket != nil {
				t.Errorf("bypass touched the store (%d ops) or minted a ticket", d.Stats.StoreOps)
			}
		})
	}
}

func TestAdmitQueuesCountriesOutsideGeocodes(t *testing.T) {
	e := newEngine(t)
	cfg := testQueue(t)
	cfg.Geocodes = []string{"CA"}

	d := e.svc.Admit(context.Background(), AdmitInput{Queue: cfg, Store: e.store, Country: "US"})
	if d.Decision != models.DecisionWait {
		t.Fatalf("decision = %s, want wait", d.Decision)
	}

	cfg.Geocodes = nil
	d = e.svc.Admit(context.Background(), AdmitInput{Queue: cfg, Store: e.store, Country: "CA"})
	if d.Decision != models.DecisionWait {
		t.Fatalf("decision with no geocodes = %s, want wait", d.Decision)
	}
}

func TestAdmitFailsOpenOnStoreErrors(t *testing.T) {
	tests := []struct {
		op        string
		withToken bool
	}{
		{op: "IncrLength"},
		{op: "GetCursor", withToken: true},
		{op: "GetReservation", withToken: true},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			e := newEngine(t)
			cfg := testQueue(t)

			var token string
			if tt.withToken {
				token = e.admit(cfg, "").NewTicket.Token
			}

			store := &faultyStore{QueueStateRepository: e.store, failOn: tt.op}
			d := e.svc.Admit(context.Background(), AdmitInput{Queue: cfg, Store: store, Token: token})

			if d.Decision != models.DecisionBypass || d.BypassReason != models.BypassStoreUnavailable {
				t.Fatalf("decision = %s(%s), want bypass(store_unavailable)", d.Decision, d.BypassReason)
			}
			if d.Stats.StoreOps == 0 {
				t.Error("failed store call was not counted")
			}
		})
	}
}

func TestAdmitKeepsWaitingWhenAutoReleaseFails(t *testing.T) {
	e := newEngine(t)
	cfg := testQueue(t)
	cfg.Automatic = time.Minute

	store := &faultyStore{QueueStateRepository: e.store, failOn: "IncrPeriodCounter"}
	d := e.svc.Admit(context.Background(), AdmitInput{Queue: cfg, Store: store})

	if d.Decision != models.DecisionWait {
		t.Fatalf("decision = %s, want wait", d.Decision)
	}
}

func TestAdmitContinuesWhenRefreshFails(t *testing.T) {
	e := newEngine(t)
	cfg := testQueue(t)
	first := e.admit(cfg, "")
	e.clock.Advance(cfg.CookieExpiry - 5*time.Second)

	store := &faultyStore{QueueStateRepository: e.store, failOn: "RefreshTTL"}
	d := e.svc.Admit(context.Background(), AdmitInput{Queue: cfg, Store: store, Token: first.NewTicket.Token})

	if d.TicketState != models.TicketStateValidNearExpiry || d.NewTicket == nil {
		t.Fatalf("state = %s, ticket = %v; want reissue despite refresh failure", d.TicketState, d.NewTicket)
	}
}

func TestAdmitWithoutSigningKeyStillDecides(t *testing.T) {
	e := newEngine(t)
	cfg := testQueue(t)
	cfg.PrivateKey = nil

	d := e.admit(cfg, "")

	if d.Decision != models.DecisionWait || d.Position != 1 {
		t.Fatalf("decision = %s position = %d, want wait at 1", d.Decision, d.Position)
	}
	if d.NewTicket != nil {
		t.Fatal("ticket minted without a private key")
	}
}

func TestAdmitAutomaticReleaseAdmitsInWindows(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	cfg := testQueue(t)
	cfg.Automatic = 60 * time.Second
	cfg.AutomaticQuantity = 5

	for i := 0; i < 6; i++ {
		e.store.IncrLength(ctx, "shop")
	}

	d := e.admit(cfg, "")
	if d.Position != 7 || d.Cursor != 5 || d.Decision != models.DecisionWait {
		t.Fatalf("first window: position=%d cursor=%d decision=%s, want 7/5/wait", d.Position, d.Cursor, d.Decision)
	}
	if d.VisitorsAhead != 2 || d.EstimatedWaitText != "0 minutes, and 24 seconds" {
		t.Errorf("ahead=%d wait=%q, want 2 and 24 seconds", d.VisitorsAhead, d.EstimatedWaitText)
	}

	tok := d.NewTicket.Token

	e.clock.Advance(time.Second)
	d = e.admit(cfg, tok)
	if d.Cursor != 5 || d.Decision != models.DecisionWait {
		t.Fatalf("same window: cursor=%d decision=%s, want 5/wait", d.Cursor, d.Decision)
	}
	if d.TicketState != models.TicketStateValidFresh {
		t.Fatalf("ticket state = %s, want %s", d.TicketState, models.TicketStateValidFresh)
	}

	e.clock.Advance(60 * time.Second)
	d = e.admit(cfg, tok)
	if d.Position != 7 || d.Cursor != 10 || d.Decision != models.DecisionAdmit {
		t.Fatalf("next window: position=%d cursor=%d decision=%s, want 7/10/admit", d.Position, d.Cursor, d.Decision)
	}
}

func TestAdmitWaitEstimate(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	cfg := testQueue(t)
	cfg.Automatic = 60 * time.Second
	cfg.AutomaticQuantity = 5

	for i := 0; i < 119; i++ {
		e.store.IncrLength(ctx, "shop")
	}
	e.store.IncrCursor(ctx, "shop", 100)
	// An already open period keeps the cursor where it is.
	e.store.IncrPeriodCounter(ctx, "shop")
	e.store.ExpireAfter(ctx, repo.PeriodKey("shop"), time.Minute)

	d := e.admit(cfg, "")

	if d.Position != 120 || d.Cursor != 100 {
		t.Fatalf("position/cursor = %d/%d, want 120/100", d.Position, d.Cursor)
	}
	if d.VisitorsAhead != 20 {
		t.Errorf("visitors ahead = %d, want 20", d.VisitorsAhead)
	}
	if d.EstimatedWait != 240*time.Second {
		t.Errorf("estimated wait = %v, want 240s", d.EstimatedWait)
	}
}

func TestAdmitConcurrentNewVisitorsGetDistinctPositions(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	cfg := testQueue(t)

	const n = 50
	decisions := make([]*models.GateDecision, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			decisions[i] = e.svc.Admit(ctx, AdmitInput{Queue: cfg, Store: e.store})
			return nil
		})
	}
	g.Wait()

	positions := make([]int64, 0, n)
	ids := make(map[string]bool, n)
	for _, d := range decisions {
		positions = append(positions, d.Position)
		ids[d.UUID] = true
	}
	sort.Slice(positions, func(a, b int) bool { return positions[a] < positions[b] })

	for i, pos := range positions {
		if pos != int64(i+1) {
			t.Fatalf("positions[%d] = %d, want %d", i, pos, i+1)
		}
	}
	if len(ids) != n {
		t.Fatalf("%d distinct visitor ids, want %d", len(ids), n)
	}
}

func TestPermittedIsCursorAtLeastPosition(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct{ cursor, position int64 }{
		{0, 1}, {1, 1}, {4, 5}, {5, 5}, {9, 5},
	} {
		e := newEngine(t)
		cfg := testQueue(t)
		for i := int64(1); i < tc.position; i++ {
			e.store.IncrLength(ctx, "shop")
		}
		e.store.IncrCursor(ctx, "shop", tc.cursor)

		d := e.admit(cfg, "")
		if d.Position != tc.position {
			t.Fatalf("position = %d, want %d", d.Position, tc.position)
		}
		if got, want := d.Permitted(), tc.cursor >= tc.position; got != want {
			t.Errorf("cursor=%d position=%d: permitted = %v, want %v", tc.cursor, tc.position, got, want)
		}
	}
}

func TestCountingStoreWrapsErrors(t *testing.T) {
	stats := &models.RequestStats{}
	store := newCountingStore(&faultyStore{QueueStateRepository: nil, failOn: "GetCursor"}, stats, nil)

	_, err := store.GetCursor(context.Background(), "shop")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if stats.StoreOps != 1 {
		t.Fatalf("store ops = %d, want 1", stats.StoreOps)
	}

	if v, err := store.IncrCursor(context.Background(), "shop", 0); v != 0 || err != nil || stats.StoreOps != 1 {
		t.Fatalf("IncrCursor(0) = %d, %v with %d ops; want a free no-op", v, err, stats.StoreOps)
	}
}
