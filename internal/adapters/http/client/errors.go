package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/oarbit/internal/adapters/http/api"
	"github.com/okian/oarbit/internal/adapters/mq/queue"
	"github.com/okian/oarbit/internal/adapters/repository"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/validate"
)

// Sentinel kinds for client errors.
var (
	ErrInvalidBaseURL = errors.New("invalid base url")
	ErrTransport      = errors.New("request failed")
	ErrDecode         = errors.New("decode response")
)

// StatusError is a non-2xx answer from the server. It unwraps to the
// sentinel the server classified the failure as, so callers match remote
// failures with the same errors.Is checks they use in process.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Code)
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, e.Message)
}

// Unwrap returns the sentinel for the response code, if any.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case api.CodeStructuralViolation:
		return validate.ErrStructural
	case api.CodeAlreadyProcessed:
		return model.ErrAlreadyProcessed
	case api.CodeConflict:
		return repository.ErrConflict
	case api.CodeNotFound:
		return repository.ErrNotFound
	case api.CodeBadRequest, api.CodeLimitExceeded:
		return api.ErrBadRequest
	case api.CodeBackpressure:
		return queue.ErrFull
	case api.CodeUnavailable:
		return api.ErrUnavailable
	}
	switch {
	case e.Status == http.StatusNotFound:
		return repository.ErrNotFound
	case e.Status == http.StatusServiceUnavailable:
		return api.ErrUnavailable
	case e.Status >= 400 && e.Status < 500:
		return api.ErrBadRequest
	}
	return nil
}
