package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/ticketbottle-gate/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-gate/internal/ticket"
	pkgLog "github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

type AdmissionOption func(*admissionService)

// WithAdmissionClock overrides the time source used for expiry decisions.
// The ticket codec should share the same clock.
func WithAdmissionClock(now func() time.Time) AdmissionOption {
	return func(s *admissionService) {
		s.now = now
	}
}

// WithVisitorIDs overrides visitor id generation.
func WithVisitorIDs(newID func() (string, error)) AdmissionOption {
	return func(s *admissionService) {
		s.newID = newID
	}
}

type admissionService struct {
	codec ticket.Codec
	rel   ReleaseService
	m     *metrics.Metrics
	l     pkgLog.Logger
	now   func() time.Time
	newID func() (string, error)
}

func NewAdmissionService(codec ticket.Codec, rel ReleaseService, m *metrics.Metrics, l pkgLog.Logger, opts ...AdmissionOption) AdmissionService {
	s := &admissionService{
		codec: codec,
		rel:   rel,
		m:     m,
		l:     l,
		now:   time.Now,
		newID: newVisitorID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newVisitorID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *admissionService) Admit(ctx context.Context, in AdmitInput) *models.GateDecision {
	cfg := in.Queue
	now := s.now()

	switch {
	case !cfg.Active:
		return s.finish(ctx, cfg, models.Bypass(models.BypassInactive))
	case cfg.HasExpired(now):
		return s.finish(ctx, cfg, models.Bypass(models.BypassExpired))
	case cfg.IsGeoExempt(in.Country):
		return s.finish(ctx, cfg, models.Bypass(models.BypassGeoExempt))
	}

	d := &models.GateDecision{}
	store := newCountingStore(in.Store, &d.Stats, s.m)

	claims, state, err := s.classify(ctx, cfg, store, in.Token, now)
	if err != nil {
		return s.storeFailure(ctx, cfg, d, err)
	}
	d.TicketState = state

	switch state {
	case models.TicketStateNone, models.TicketStateInvalid:
		id, pos, err := s.enqueue(ctx, cfg, store)
		if err != nil {
			return s.storeFailure(ctx, cfg, d, err)
		}
		d.UUID, d.Position = id, pos
		d.NewTicket = s.mint(ctx, cfg, id, pos, now)

	case models.TicketStateValidNearExpiry:
		d.UUID, d.Position = claims.UUID, claims.Position
		ok, err := store.RefreshTTL(ctx, repo.ReservationKey(cfg.QueueName, claims.UUID), cfg.CookieExpiry)
		if err != nil {
			s.l.Errorf(ctx, "service.admissionService.Admit: %v", err)
		} else if !ok {
			s.l.Warnf(ctx, "service.admissionService.Admit: reservation for %s vanished before refresh", claims.UUID)
		}
		d.NewTicket = s.mint(ctx, cfg, claims.UUID, claims.Position, now)

	case models.TicketStateValidFresh:
		d.UUID, d.Position = claims.UUID, claims.Position
	}

	cursor, err := store.GetCursor(ctx, cfg.QueueName)
	if err != nil {
		return s.storeFailure(ctx, cfg, d, err)
	}
	permitted := cursor >= d.Position

	if !permitted && cfg.AutomaticEnabled() {
		bumped, advanced, err := s.rel.Tick(ctx, cfg, store)
		if err != nil {
			// The visitor keeps waiting; the next poll retries the period.
			s.l.Errorf(ctx, "service.admissionService.Admit: %v", err)
		} else if advanced {
			cursor = bumped
			permitted = cursor >= d.Position
		}
	}

	d.Cursor = cursor
	s.l.Debugf(ctx, "Visitor position=%d cursor=%d permitted=%v ticket=%s", d.Position, cursor, permitted, state)

	if permitted {
		d.Decision = models.DecisionAdmit
		return s.finish(ctx, cfg, d)
	}

	d.Decision = models.DecisionWait
	d.VisitorsAhead = max(d.Position-cursor, 0)
	wait, known := EstimateWait(cfg, d.VisitorsAhead, now)
	d.EstimatedWait = wait
	d.EstimatedWaitText = FormatWait(wait, known)

	return s.finish(ctx, cfg, d)
}

// classify runs the ticket state machine. The signature proves the claims
// were issued by us; the reservation proves they are still current.
func (s *admissionService) classify(ctx context.Context, cfg *models.QueueConfig, store repo.QueueStateRepository, token string, now time.Time) (*models.TicketClaims, models.TicketState, error) {
	if token == "" {
		return nil, models.TicketStateNone, nil
	}

	claims, err := s.codec.Verify(cfg, token)
	if err != nil {
		s.l.Debugf(ctx, "Ticket rejected queue=%s: %v", cfg.QueueName, err)
		return nil, models.TicketStateInvalid, nil
	}

	stored, found, err := store.GetReservation(ctx, repo.ReservationKey(cfg.QueueName, claims.UUID))
	if err != nil {
		return nil, "", err
	}

	expiry, err := claims.ExpiryTime()
	if err != nil || !found || stored != claims.Position || !expiry.After(now) {
		s.l.Debugf(ctx, "Ticket not backed by a reservation queue=%s uuid=%s found=%v stored=%d claimed=%d",
			cfg.QueueName, claims.UUID, found, stored, claims.Position)
		return nil, models.TicketStateInvalid, nil
	}

	if expiry.Sub(now) <= cfg.RefreshInterval {
		return claims, models.TicketStateValidNearExpiry, nil
	}

	return claims, models.TicketStateValidFresh, nil
}

// enqueue assigns the next position to a fresh visitor id and reserves it.
func (s *admissionService) enqueue(ctx context.Context, cfg *models.QueueConfig, store repo.QueueStateRepository) (string, int64, error) {
	id, err := s.newID()
	if err != nil {
		return "", 0, err
	}

	pos, err := store.IncrLength(ctx, cfg.QueueName)
	if err != nil {
		return "", 0, err
	}

	ok, err := store.ReserveIfAbsent(ctx, repo.ReservationKey(cfg.QueueName, id), pos, cfg.CookieExpiry)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		s.l.Warnf(ctx, "service.admissionService.enqueue: reservation for %s already existed", id)
	}

	return id, pos, nil
}

// mint signs a ticket. A signing failure is logged and yields nil; the
// visitor is re-evaluated as ticketless on the next request.
func (s *admissionService) mint(ctx context.Context, cfg *models.QueueConfig, id string, pos int64, now time.Time) *models.Ticket {
	expiry := now.Add(cfg.CookieExpiry)

	token, err := s.codec.Sign(cfg, id, pos, expiry)
	if err != nil {
		s.l.Errorf(ctx, "service.admissionService.mint: %v", err)
		if s.m != nil {
			s.m.SigningErrors.WithLabelValues(cfg.QueueName).Inc()
		}
		return nil
	}

	return &models.Ticket{
		Token:    token,
		UUID:     id,
		Position: pos,
		Expiry:   expiry,
	}
}

func (s *admissionService) storeFailure(ctx context.Context, cfg *models.QueueConfig, d *models.GateDecision, err error) *models.GateDecision {
	s.l.Errorf(ctx, "service.admissionService.Admit: failing open: %v", err)

	out := models.Bypass(models.BypassStoreUnavailable)
	out.TicketState = d.TicketState
	out.Stats = d.Stats
	return s.finish(ctx, cfg, out)
}

func (s *admissionService) finish(ctx context.Context, cfg *models.QueueConfig, d *models.GateDecision) *models.GateDecision {
	if s.m != nil {
		s.m.DecisionsTotal.WithLabelValues(cfg.QueueName, string(d.Decision), string(d.BypassReason)).Inc()
		if d.TicketState != "" {
			s.m.TicketsTotal.WithLabelValues(cfg.QueueName, string(d.TicketState)).Inc()
		}
	}

	if d.Decision == models.DecisionBypass {
		s.l.Debugf(ctx, "Queue %s bypassed: %s", cfg.QueueName, d.BypassReason)
	}

	return d
}
