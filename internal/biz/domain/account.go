package domain

import "time"

// AccountSnapshot is the observable runtime state of one account
type AccountSnapshot struct {
	AccountID      string    `json:"account_id"`
	Configured     bool      `json:"configured"`
	Running        bool      `json:"running"`
	Connected      bool      `json:"connected"`
	LastInboundAt  time.Time `json:"last_inbound_at"`
	LastOutboundAt time.Time `json:"last_outbound_at"`
	LastStartAt    time.Time `json:"last_start_at"`
	LastStopAt     time.Time `json:"last_stop_at"`
	MessageCount   int64     `json:"message_count"`
	ErrorCount     int64     `json:"error_count"`
	LastError      string    `json:"last_error,omitempty"`
}
