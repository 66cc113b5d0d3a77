package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/types"
)

const contentTypeJSON = "application/json; charset=utf-8"

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteRedirect answers 303 See Other with the landing route in both the
// Location header and the body. msg is the notice the caller queued for
// that page, echoed so API clients can show it without a second call.
func WriteRedirect(w http.ResponseWriter, location string, msg *types.Message) {
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusSeeOther, types.RedirectPayload{Redirect: location, Message: msg})
}

// WriteError renders err as the error envelope. Untyped errors become
// INTERNAL. Server-side failures are logged at error level with the cause
// chain; client mistakes only at warn.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("error response without an error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := types.APIError{Code: string(typed.Code()), Message: typed.PublicMessage()}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}

	logFailure(ctx, logg, meta.HTTPStatus, err)
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: body})
}

func logFailure(ctx context.Context, logg *logger.Logger, status int, err error) {
	if logg == nil {
		return
	}
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"status":      status,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
	}
	if dump.DB != nil {
		fields["db"] = dump.DB
		fields["db_transient"] = dump.DB.Transient()
	}
	ctx = logg.WithFields(ctx, fields)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(logg.WithField(ctx, "error", dump.TopMessage), "request.rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "responses: encode %T: %v\n", payload, err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
