package models

import "time"

type Decision string

const (
	DecisionAdmit  Decision = "admit"
	DecisionWait   Decision = "wait"
	DecisionBypass Decision = "bypass"
)

// BypassReason explains why the gate forwarded a request without evaluating it.
type BypassReason string

const (
	BypassNone             BypassReason = ""
	BypassWhitelisted      BypassReason = "whitelisted"
	BypassNoQueue          BypassReason = "no_queue"
	BypassConfigMissing    BypassReason = "config_missing"
	BypassInactive         BypassReason = "inactive"
	BypassExpired          BypassReason = "expired"
	BypassGeoExempt        BypassReason = "geo_exempt"
	BypassStoreUnavailable BypassReason = "store_unavailable"
)

type TicketState string

const (
	TicketStateNone            TicketState = "no_ticket"
	TicketStateInvalid         TicketState = "invalid"
	TicketStateValidFresh      TicketState = "valid_fresh"
	TicketStateValidNearExpiry TicketState = "valid_near_expiry"
)

// GateDecision is the outcome of evaluating one request against one queue.
type GateDecision struct {
	Decision     Decision
	BypassReason BypassReason
	TicketState  TicketState

	UUID     string
	Position int64
	Cursor   int64

	VisitorsAhead     int64
	EstimatedWait     time.Duration
	EstimatedWaitText string

	// NewTicket is set when a ticket was minted or refreshed for this request.
	NewTicket *Ticket

	Stats RequestStats
}

// Permitted reports whether the request is forwarded to the origin.
func (d *GateDecision) Permitted() bool {
	return d.Decision != DecisionWait
}

// Bypass builds a fail-open decision.
func Bypass(reason BypassReason) *GateDecision {
	return &GateDecision{Decision: DecisionBypass, BypassReason: reason}
}

// RequestStats counts the store round-trips one request performed.
type RequestStats struct {
	StoreOps  int
	StoreTime time.Duration
}

func (s *RequestStats) Observe(d time.Duration) {
	s.StoreOps++
	s.StoreTime += d
}
