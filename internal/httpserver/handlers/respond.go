package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/gateway"
	"github.com/MrSnakeDoc/asksite/internal/session"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Warning bool   `json:"warning,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and a stable error code.
func writeError(w http.ResponseWriter, err error) {
	status, body := describeError(err)
	writeJSON(w, status, body)
}

func describeError(err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}

	var te *gateway.TransportError
	switch {
	case errors.Is(err, session.ErrEmptyQuery):
		body.Code = "empty_query"
		return http.StatusBadRequest, body
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, errBadRequest):
		body.Code = "bad_request"
		return http.StatusBadRequest, body
	case errors.Is(err, session.ErrOperationInProgress):
		body.Code = "operation_in_progress"
		return http.StatusConflict, body
	case errors.Is(err, session.ErrNotReady):
		body.Code = "not_ready"
		return http.StatusConflict, body
	case errors.Is(err, session.ErrNoSite), errors.Is(err, session.ErrNothingToRetry):
		body.Code = "no_site"
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrAlreadyAnalyzed):
		body.Code = "already_analyzed"
		body.Warning = true
		return http.StatusConflict, body
	case errors.Is(err, session.ErrConversationNotFound):
		body.Code = "conversation_not_found"
		return http.StatusNotFound, body
	case errors.As(err, &te):
		body.Code = "backend_error"
		body.Kind = string(te.Kind)
		if te.Kind == gateway.KindTimeout {
			return http.StatusGatewayTimeout, body
		}
		return http.StatusBadGateway, body
	default:
		body.Code = "internal"
		return http.StatusInternalServerError, body
	}
}

var errBadRequest = errors.New("bad request")

// decodeJSON reads a small JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
