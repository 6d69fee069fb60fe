package utils

import (
	"context"
	"time"
)

// Token time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Payment constants
const (
	TomanCurrency = "TMN"

	// GatewaySettledCode is the verification result code that confirms settlement
	GatewaySettledCode = 100
)

type contextKey string

// Request-scoped context keys
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
)

// RequestIDFrom returns the request id stored in ctx, if any
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
