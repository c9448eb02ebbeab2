// Package requestcontext carries per-request metadata through context.Context.
// Handlers and services read from it; middleware writes to it.
package requestcontext

import "context"

type requestIDKey struct{}
type clientIPKey struct{}
type userAgentKey struct{}
type deviceSummaryKey struct{}

// WithRequestID stores the request correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request correlation ID, or "" when absent.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithClientMetadata stores the client IP and raw User-Agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, ip)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// ClientIP returns the extracted client IP, or "" when absent.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent returns the raw User-Agent header, or "" when absent.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithDeviceSummary stores a parsed browser/OS summary for audit attribution.
func WithDeviceSummary(ctx context.Context, summary string) context.Context {
	return context.WithValue(ctx, deviceSummaryKey{}, summary)
}

// DeviceSummary returns the parsed device summary, or "" when absent.
func DeviceSummary(ctx context.Context) string {
	if s, ok := ctx.Value(deviceSummaryKey{}).(string); ok {
		return s
	}
	return ""
}
