package ticket

import "errors"

var (
	// ErrInvalidToken means no valid ticket was presented. It is an expected
	// outcome and callers treat the visitor as ticketless.
	ErrInvalidToken = errors.New("invalid or expired ticket")
	// ErrSigning means a ticket could not be minted for this request.
	ErrSigning = errors.New("ticket signing failed")

	ErrInvalidKey = errors.New("invalid key material")
)
