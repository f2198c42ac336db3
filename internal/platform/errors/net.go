package errors

// Network-level helpers for classifying outbound fetch failures as retryable
// or permanent. HTTP status classification lives here too so the fetch adapter
// and the throttle gate agree on one taxonomy.

import (
	"context"
	stderrs "errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// RetryableStatus reports whether an HTTP status is worth retrying.
// 408 and 429 are transient by contract; all 5xx are treated as transient.
// Every other 4xx is a permanent client error
func RetryableStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

// CodeForStatus maps an HTTP status to a pipeline ErrorCode
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorCodeTooManyRequests
	case status == http.StatusRequestTimeout, status >= 500:
		return ErrorCodeUnavailable
	case status == http.StatusNotFound, status == http.StatusGone:
		return ErrorCodeNotFound
	default:
		return ErrorCodeInvalidArgument
	}
}

// IsRetryableNetwork reports whether err is a transport-level failure worth
// retrying: connection reset/refused, DNS failure, timeout, or the upstream
// hanging up mid-response. Context cancellation is never retryable here; the
// caller decided to stop
func IsRetryableNetwork(err error) bool {
	if err == nil {
		return false
	}
	if stderrs.Is(err, context.Canceled) {
		return false
	}
	// a deadline exceeded on the request context is the fetch timeout firing
	if stderrs.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if stderrs.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if stderrs.As(err, &dnsErr) {
		return true
	}
	if stderrs.Is(err, syscall.ECONNRESET) || stderrs.Is(err, syscall.ECONNREFUSED) ||
		stderrs.Is(err, syscall.EPIPE) {
		return true
	}
	// server closed the connection mid-body
	if stderrs.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// fallback: driver/runtime error strings with no typed form
	s := strings.ToLower(Root(err).Error())
	switch {
	case strings.Contains(s, "connection reset"),
		strings.Contains(s, "connection refused"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "socket hang up"),
		strings.Contains(s, "i/o timeout"),
		strings.Contains(s, "tls handshake timeout"):
		return true
	}
	return false
}
