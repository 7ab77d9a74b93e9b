package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/statusmvp/wallet-auth/internal/errs"
	"github.com/statusmvp/wallet-auth/internal/observability/logger"
)

// apiError es el sobre de error del protocolo.
type apiError struct {
	OK                bool           `json:"ok"`
	Code              string         `json:"code"`
	Message           string         `json:"message"`
	RetryAfterSeconds int            `json:"retryAfterSeconds"`
	Details           map[string]any `json:"details"`
	Timestamp         int64          `json:"timestamp"`
}

// WriteError serializa un error del dominio al sobre estándar. Errores no
// tipados se reportan como INTERNAL_ERROR sin detalle.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := errs.As(err)
	if !ok {
		logger.From(r.Context()).Error("unhandled error", logger.Err(err))
		ae = errs.New(errs.InternalError, "Internal server error", http.StatusInternalServerError)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if ae.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(ae.RetryAfterSeconds))
	}
	w.WriteHeader(ae.Status)

	details := ae.Details
	if details == nil {
		details = map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(apiError{
		OK:                false,
		Code:              string(ae.Code),
		Message:           ae.Message,
		RetryAfterSeconds: ae.RetryAfterSeconds,
		Details:           details,
		Timestamp:         time.Now().UnixMilli(),
	})
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica JSON de forma tolerante (no falla por campos extra).
// Valida Content-Type y limita el body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, r, errs.New(errs.BadRequest, "Content-Type debe ser application/json", http.StatusBadRequest))
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		WriteError(w, r, errs.New(errs.BadRequest, "json inválido", http.StatusBadRequest))
		return false
	}
	return true
}
