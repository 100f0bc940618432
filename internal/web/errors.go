package web

// errors.go turns handler errors into JSON responses. The technical error is
// logged with the request id; the client gets the mapped message and code.

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/gtfsload/internal/core"
	"github.com/JonMunkholm/gtfsload/internal/logging"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user message with statusCode. A
// statusCode of zero derives the status from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := core.MapError(err)
	if statusCode == 0 {
		statusCode = statusFor(err, msg.Code)
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	)

	if errors.Is(err, core.ErrTooManyLoads) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSON(w, statusCode, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// retryAfterSeconds is the hint sent with load rejections.
const retryAfterSeconds = 30

func statusFor(err error, code string) int {
	switch {
	case errors.Is(err, core.ErrTooManyLoads):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrLoadNotFound):
		return http.StatusNotFound
	}
	switch code {
	case "FEED001", "TBL001":
		return http.StatusNotFound
	case "FEED002", "FEED003", "FEED004":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
