package http

import (
	"net/http"
	"time"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
)

// ticketCookie returns the last ticket cookie sent, or "".
func ticketCookie(r *http.Request, name string) string {
	cookies := r.CookiesNamed(name)
	if len(cookies) == 0 {
		return ""
	}
	return cookies[len(cookies)-1].Value
}

func newTicketCookie(cfg *models.QueueConfig, token string) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.CookieExpiry / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}
