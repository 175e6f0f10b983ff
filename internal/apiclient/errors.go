package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

// ErrorKind classifies a failed call. The server sends it in the error body;
// for older backends it is derived from the status code.
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindTimeout      ErrorKind = "timeout"
	KindBadRequest   ErrorKind = "bad_request"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindServer       ErrorKind = "server"
	KindDecode       ErrorKind = "decode"
	KindUnknown      ErrorKind = "unknown"
)

// FetchError is returned by every client operation that fails.
type FetchError struct {
	Op      string
	Status  int // zero for transport failures
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s", e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	fmt.Fprintf(&b, " (%s)", e.Kind)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err, or "" when err is not a FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsNotFound reports a 404 response. The body's kind is not consulted, so a
// 500 that claims not_found is still a failure.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Status == http.StatusNotFound
}

func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindBadRequest
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// statusError reads the error envelope from a non-2xx response.
func statusError(op string, resp *http.Response) *FetchError {
	fe := &FetchError{
		Op:     op,
		Status: resp.StatusCode,
		Kind:   kindForStatus(resp.StatusCode),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(raw) == 0 {
		return fe
	}

	var body models.ErrorBody
	if json.Unmarshal(raw, &body) == nil && (body.Kind != "" || body.Message != "") {
		if body.Kind != "" {
			fe.Kind = ErrorKind(body.Kind)
		}
		fe.Message = body.Message
		return fe
	}
	fe.Message = strings.TrimSpace(string(raw))
	return fe
}
