// internal/api/respond.go
package api

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "shoe-size-analytics/internal/common/errors"
)

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

type errorBody struct {
	Error     *apperrors.StandardError `json:"error"`
	RequestID string                   `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err *apperrors.StandardError) {
	writeJSON(w, apperrors.HTTPStatus(err.Code), errorBody{Error: err, RequestID: requestIDFrom(r)})
}
