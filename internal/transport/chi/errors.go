package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/logger"
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest     = "bad_request"
	codeUnauthorized   = "unauthorized"
	codeEntityNotFound = "entity_not_found"
	codeImportBusy     = "import_busy"
	codeNotRunning     = "import_not_running"
	codeInternalError  = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorMapping maps a domain sentinel to an HTTP response.
type errorMapping struct {
	sentinel error
	status   int
	code     string
}

var errorMappings = []errorMapping{
	{domain.ErrUnknownEntity, http.StatusNotFound, codeEntityNotFound},
	{domain.ErrBusy, http.StatusConflict, codeImportBusy},
	{domain.ErrNotRunning, http.StatusConflict, codeNotRunning},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// handleDomainError writes the response for err. The full error text is
// returned only for known sentinels; everything else becomes "internal error".
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			log.Warn("domain error", zap.Error(err))
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
