package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ruzivolabs/ruzivo/internal/fault"
)

// httpStatusError carries an HTTP status for the hand-rolled adapters and
// search clients that do not go through a vendor SDK.
type httpStatusError struct {
	Status int
	Body   string
}

func (e *httpStatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("http %d: %s", e.Status, body)
}

// httpStatusOf extracts an HTTP status code from vendor SDK errors and our
// own status errors. Returns 0 when no status is attached.
func httpStatusOf(err error) int {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.Status
	}
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) {
		return oaiAPI.HTTPStatusCode
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) {
		return oaiReq.HTTPStatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	return 0
}

// isNetworkError reports transport-level failures worth retrying.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	// Some providers surface transport failures as bare strings.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "no such host")
}

// shouldRetry implements the adapter retry policy: network errors, 429,
// and 5xx retry; everything else fails fast. Interrupts and caller errors
// never retry.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if fault.IsKind(err, fault.KindInterrupted) || fault.IsKind(err, fault.KindInvalidArgument) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if status := httpStatusOf(err); status != 0 {
		return status == 429 || status >= 500
	}
	return isNetworkError(err)
}

// classifyPermanent assigns a fault kind to a non-retryable provider error:
// 401/403 is an auth failure, any other 4xx means we sent a bad request.
// Already-classified errors and statusless errors pass through.
func classifyPermanent(what string, err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return fault.Interrupted()
	}
	switch status := httpStatusOf(err); {
	case status == 401 || status == 403:
		return fault.Wrap(fault.KindAuth, err, "%s: authentication rejected", what)
	case status >= 400 && status < 500:
		return fault.Wrap(fault.KindInvalidArgument, err, "%s: request rejected", what)
	}
	return err
}
