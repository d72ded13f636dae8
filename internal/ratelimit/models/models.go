package models

import "time"

// RateLimitResult is the outcome of one limiter check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set when denied
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	RetryAfter int    `json:"retry_after"`
}

// VerifyKey namespaces the public verification limit per client IP.
func VerifyKey(ip string) string {
	return "ratelimit:verify:ip:" + ip
}
