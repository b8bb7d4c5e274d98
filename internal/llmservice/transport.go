package llmservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"pdf-rag/internal/models"
)

// authTransport turns credential rejections into AuthError before the
// backend client library gets to flatten the response into a plain error.
type authTransport struct {
	base http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, models.Errorf(models.KindAuth, req.URL.Host,
			"backend rejected credential: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// NewHTTPClient returns the client every backend call goes through.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &authTransport{base: http.DefaultTransport.(*http.Transport).Clone()},
	}
}

// ClassifyError maps a backend failure to AuthError, NetworkError or BackendError.
// Errors that already carry a kind keep it.
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var kindErr *models.Error
	if errors.As(err, &kindErr) {
		if kindErr.Op == op {
			return kindErr
		}
		return models.NewError(kindErr.Kind, op, err)
	}

	// a truncated response body is a malformed response, not a lost connection
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return models.NewError(models.KindBackend, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NewError(models.KindNetwork, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return models.NewError(models.KindNetwork, op, err)
	}

	// client libraries do not always wrap with %w
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "401", "403", "unauthorized", "forbidden", "invalid api key", "incorrect api key", "rejected credential"):
		return models.NewError(models.KindAuth, op, err)
	case containsAny(msg, "connection refused", "no such host", "timeout", "deadline exceeded",
		"connection reset", "network is unreachable", "dial tcp") || msg == "eof" || strings.HasSuffix(msg, ": eof"):
		return models.NewError(models.KindNetwork, op, err)
	default:
		return models.NewError(models.KindBackend, op, err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// UserMessage is the text shown to the user for a failed operation.
func UserMessage(err error) string {
	switch models.KindOf(err) {
	case models.KindFormat:
		return fmt.Sprintf("The file could not be read as a PDF (%v).", err)
	case models.KindAuth:
		return fmt.Sprintf("The backend rejected the credential, check api_credential (%v).", err)
	case models.KindNetwork:
		return fmt.Sprintf("The backend could not be reached (%v).", err)
	case models.KindBackend:
		return fmt.Sprintf("The backend returned an error (%v).", err)
	case models.KindEmptyContent:
		if c := rootCause(err); c != nil {
			return fmt.Sprintf("No answerable content: %v.", c)
		}
		return "No answerable content."
	case models.KindInvalidInput:
		return err.Error()
	default:
		return err.Error()
	}
}

// rootCause returns the cause under the innermost *models.Error, nil if it has none.
func rootCause(err error) error {
	var e *models.Error
	for errors.As(err, &e) {
		if e.Err == nil {
			return nil
		}
		err = e.Err
	}
	return err
}
