package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches a 401 from the backend.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches a 404 from the backend.
	ErrNotFound = errors.New("not found")
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Endpoint string
	Status   int
	// Detail is the backend's human readable message, if any.
	Detail string
	Body   string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.Status)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Detail extracts the backend message from err, or "" when there is none.
func Detail(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Detail
	}
	return ""
}

// parseDetail reads a FastAPI style {"detail": "..."} body.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	// validation errors come back as a list of {msg: ...}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &list); err == nil && len(list) > 0 {
		return list[0].Msg
	}
	return ""
}
