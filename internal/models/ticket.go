package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/util"
)

// TicketClaims is the signed claim set proving a visitor's place in a queue.
type TicketClaims struct {
	Position int64  `json:"position"`
	Expiry   string `json:"expiry"`
	UUID     string `json:"UUID"`
	jwt.RegisteredClaims
}

// ExpiryTime parses the ISO expiry claim.
func (c *TicketClaims) ExpiryTime() (time.Time, error) {
	return util.ParseISO8601(c.Expiry)
}

// Ticket is a minted, signed ticket ready to be handed to the visitor.
type Ticket struct {
	Token    string
	UUID     string
	Position int64
	Expiry   time.Time
}
