package middleware

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/logger"
	edgemetrics "fueltracker/services/fuel-svc/internal/metrics"
)

// ErrorBody тело ответа с ошибкой
type ErrorBody struct {
	Code      pkgerrors.ErrorCode `json:"code"`
	Message   string              `json:"message"`
	Field     string              `json:"field,omitempty"`
	Details   map[string]any      `json:"details,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// WriteJSON пишет JSON ответ
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warn("Failed to encode response", "error", err)
	}
}

// WriteError переводит ошибку в HTTP статус и тело {code, message, field, details}.
// Причина внутренних ошибок наружу не отдаётся.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := pkgerrors.From(err)
	status := appErr.HTTPStatus()

	body := ErrorBody{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Field:     appErr.Field,
		Details:   appErr.Details,
		RequestID: GetRequestID(r.Context()),
	}

	l := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error("Request failed", "code", appErr.Code, "error", err)
		if appErr.Code == pkgerrors.CodeInternal {
			body.Details = nil
		}
	} else {
		l.Debug("Request rejected", "code", appErr.Code, "message", appErr.Message)
	}

	edgemetrics.Get().RecordError(string(appErr.Code), status)
	WriteJSON(w, status, body)
}

// responseWriter запоминает статус и размер ответа
type responseWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func wrapWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// Unwrap для http.ResponseController
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack нужен websocket upgrader'у
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

// Flush пробрасывает сброс буфера
func (w *responseWriter) Flush() {
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}
