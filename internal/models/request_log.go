package models

import "time"

// RequestLogEntry is emitted once per gated request.
type RequestLogEntry struct {
	Timestamp        time.Time    `json:"timestamp"`
	RequestID        string       `json:"request_id,omitempty"`
	ClientAddress    string       `json:"client_address"`
	RequestURL       string       `json:"request_url"`
	RequestMethod    string       `json:"request_method"`
	RequestReferer   string       `json:"request_referer,omitempty"`
	RequestUserAgent string       `json:"request_user_agent,omitempty"`
	ClientGeoCountry string       `json:"client_geo_country,omitempty"`
	QueueName        string       `json:"queue_name,omitempty"`
	Decision         Decision     `json:"decision"`
	BypassReason     BypassReason `json:"bypass_reason,omitempty"`
	Permitted        bool         `json:"permitted"`
	ResponseStatus   int          `json:"response_status"`
	QueueCursor      int64        `json:"queue_cursor"`
	VisitorPosition  int64        `json:"visitor_position"`
	StoreOps         int          `json:"store_ops"`
}

// QueueStats summarizes a queue's counters for administrators.
type QueueStats struct {
	QueueName       string `json:"queue_name"`
	Cursor          int64  `json:"cursor"`
	Length          int64  `json:"length"`
	VisitorsWaiting int64  `json:"visitors_waiting"`
}
