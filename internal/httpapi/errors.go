package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-fulfillment/internal/domain/failure"
	"github.com/xenking/kart-fulfillment/internal/identity"
)

var errRouteNotFound = failure.New(failure.NotFound, "route not found")

func badBody(err error) error {
	return failure.Errorf(failure.BadRequest, "malformed request body: %v", err)
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	if errors.Is(err, identity.ErrInvalidToken) {
		return http.StatusUnauthorized
	}
	switch failure.KindOf(err) {
	case failure.NotFound:
		return http.StatusNotFound
	case failure.BadRequest:
		return http.StatusBadRequest
	case failure.Conflict:
		return http.StatusConflict
	case failure.Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"code":..,"message":..}. Unclassified errors are
// logged and hidden behind a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	writeMessage(w, status, msg)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	write(w, status, &e)
}

func write(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
