package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/apperrors"
	"github.com/Tyrowin/livechat/internal/logging"
)

const maxBodyBytes = 1 << 20

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("Failed to write JSON response", zap.Error(err))
	}
}

func writeSuccess(w http.ResponseWriter, status int) {
	writeJSON(w, status, successResponse{Success: true})
}

// writeError renders err as a structured error body. Internal causes are
// logged and never sent to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.AsStructuredError(err)
	s.httpMetrics.RecordError(string(appErr.Type))

	logger := logging.FromContext(r.Context())
	if appErr.Type == apperrors.TypeInternal {
		logger.Error("Request failed", zap.String("error", appErr.Message), zap.Error(appErr.Cause))
	} else {
		logger.Debug("Request rejected", zap.String("type", string(appErr.Type)), zap.String("error", appErr.Message))
	}

	writeJSON(w, appErr.HTTPStatus(), appErr.ToResponse())
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.Validation("Request body too large")
		}
		return apperrors.Validation("Invalid JSON body")
	}
	return nil
}
