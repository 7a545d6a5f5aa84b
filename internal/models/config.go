package models

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// RouteEntry maps a request path pattern (regular expression) to a queue name.
// On the wire it is the two element array [pattern, queueName].
type RouteEntry struct {
	Pattern   string `yaml:"pattern"`
	QueueName string `yaml:"queue"`
}

func (e RouteEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.Pattern, e.QueueName})
}

func (e *RouteEntry) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("route entry: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("route entry: want [pattern, queueName], got %d elements", len(pair))
	}
	e.Pattern, e.QueueName = pair[0], pair[1]
	return nil
}

// GlobalConfig holds the process wide defaults shared by every queue.
type GlobalConfig struct {
	AdminPath         string       `json:"adminPath" yaml:"adminPath"`
	AdminPassword     string       `json:"adminPassword" yaml:"adminPassword"`
	ForceDebug        bool         `json:"forceDebug" yaml:"forceDebug"`
	Active            bool         `json:"active" yaml:"active"`
	Expires           string       `json:"expires" yaml:"expires"`
	RefreshInterval   int          `json:"refreshInterval" yaml:"refreshInterval"`
	CookieName        string       `json:"cookieName" yaml:"cookieName"`
	CookieExpiry      int          `json:"cookieExpiry" yaml:"cookieExpiry"`
	Automatic         int          `json:"automatic" yaml:"automatic"`
	AutomaticQuantity int          `json:"automaticQuantity" yaml:"automaticQuantity"`
	RedisURL          string       `json:"redisUrl" yaml:"redisUrl"`
	RedisToken        string       `json:"redisToken" yaml:"redisToken"`
	QueuePage         string       `json:"queuePage" yaml:"queuePage"`
	AdminPage         string       `json:"adminPage" yaml:"adminPage"`
	PrivateKey        string       `json:"privateKey" yaml:"privateKey"`
	PublicKey         string       `json:"publicKey" yaml:"publicKey"`
	Queues            []RouteEntry `json:"queues" yaml:"queues"`
	Whitelist         []string     `json:"whitelist" yaml:"whitelist"`
}

// DefaultGlobalConfig is written on first run when no global record exists.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		AdminPath:         "/_queueAdmin",
		AdminPassword:     "change me soon",
		RefreshInterval:   15,
		CookieName:        "global-queue",
		CookieExpiry:      86400,
		Automatic:         300,
		AutomaticQuantity: 1,
		RedisToken:        "global_redisToken",
		QueuePage:         "global_Queue",
		AdminPage:         "global_Admin",
		PrivateKey:        "global_privateKey",
		PublicKey:         "global_publicKey",
		Queues:            []RouteEntry{},
		Whitelist:         []string{},
	}
}

// QueueRecord is the stored per-queue override. Nil pointers and empty strings
// mean "inherit from the global record".
type QueueRecord struct {
	QueueName         string   `json:"queueName" yaml:"queueName"`
	Active            *bool    `json:"active,omitempty" yaml:"active,omitempty"`
	Expires           string   `json:"expires,omitempty" yaml:"expires,omitempty"`
	Geocodes          []string `json:"geocodes,omitempty" yaml:"geocodes,omitempty"`
	AdminPath         string   `json:"adminPath,omitempty" yaml:"adminPath,omitempty"`
	AdminPassword     string   `json:"adminPassword,omitempty" yaml:"adminPassword,omitempty"`
	RefreshInterval   *int     `json:"refreshInterval,omitempty" yaml:"refreshInterval,omitempty"`
	CookieName        string   `json:"cookieName,omitempty" yaml:"cookieName,omitempty"`
	CookieExpiry      *int     `json:"cookieExpiry,omitempty" yaml:"cookieExpiry,omitempty"`
	Automatic         *int     `json:"automatic,omitempty" yaml:"automatic,omitempty"`
	AutomaticQuantity *int     `json:"automaticQuantity,omitempty" yaml:"automaticQuantity,omitempty"`
	RedisURL          string   `json:"redisUrl,omitempty" yaml:"redisUrl,omitempty"`
	RedisToken        string   `json:"redisToken,omitempty" yaml:"redisToken,omitempty"`
	QueuePage         string   `json:"queuePage,omitempty" yaml:"queuePage,omitempty"`
	AdminPage         string   `json:"adminPage,omitempty" yaml:"adminPage,omitempty"`
	PrivateKey        string   `json:"privateKey,omitempty" yaml:"privateKey,omitempty"`
	PublicKey         string   `json:"publicKey,omitempty" yaml:"publicKey,omitempty"`
}

// QueueConfig is the effective configuration of one queue after merging the
// queue record over the global defaults and resolving secrets and pages.
type QueueConfig struct {
	QueueName         string
	Active            bool
	Expires           *time.Time
	Geocodes          []string
	CookieName        string
	CookieExpiry      time.Duration
	RefreshInterval   time.Duration
	Automatic         time.Duration
	AutomaticQuantity int64

	PublicKey  *rsa.PublicKey
	PrivateKey *rsa.PrivateKey

	RedisURL   string
	RedisToken string

	AdminPath       string
	AdminPassword   string
	WaitingRoomPage string
	AdminPage       string
}

// AutomaticEnabled reports whether periodic automatic release is configured.
func (c *QueueConfig) AutomaticEnabled() bool {
	return c.Automatic > 0
}

// HasExpired reports whether the queue's absolute deadline has passed.
func (c *QueueConfig) HasExpired(now time.Time) bool {
	return c.Expires != nil && now.After(*c.Expires)
}

// IsGeoExempt reports whether visitors from country are exempt from queueing.
func (c *QueueConfig) IsGeoExempt(country string) bool {
	if country == "" {
		return false
	}
	for _, code := range c.Geocodes {
		if strings.EqualFold(code, country) {
			return true
		}
	}
	return false
}

// QueueAdminPath is where the queue's own admin page is served, or "" when
// the queue has no admin path.
func (c *QueueConfig) QueueAdminPath() string {
	if c.AdminPath == "" {
		return ""
	}
	return path.Join("/", c.QueueName, c.AdminPath)
}
