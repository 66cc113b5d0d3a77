package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
)

type samplePayload struct {
	Material      string `json:"material" validate:"required,max=4"`
	Quantity      int    `json:"quantity" validate:"required,min=1"`
	EstimatedDate string `json:"estimated_date" validate:"required,datetime=2006-01-02"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"material":"PLASTIC","quantity":0,"estimated_date":"15/10/2026"}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at most 4", details["material"])
	assert.Equal(t, "is required", details["quantity"])
	assert.Equal(t, "must be a date formatted as 2006-01-02", details["estimated_date"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"material":"PLA","quantity":1,"estimated_date":"2026-10-20","status":"COMPLETED"}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{"status": "is not accepted"}, pkgerrors.As(err).Details())
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":      ``,
		"syntax":     `{"material":`,
		"wrong type": `{"material":"PET","quantity":"two","estimated_date":"2026-10-20"}`,
		"trailing":   `{"material":"PET","quantity":1,"estimated_date":"2026-10-20"} {}`,
		"too large":  `{"material":"` + strings.Repeat("x", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dest samplePayload
			err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%v", err)
		})
	}

	var dest samplePayload
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":"two"}`)), &dest)
	assert.Equal(t, map[string]string{"quantity": "must be a int"}, pkgerrors.As(err).Details())
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&from=2026-01-02&operator=nope&unassigned=yes", nil)

	_, err := ParseQueryInt(req, "limit", 20, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	from, err := ParseQueryDate(req, "from")
	require.NoError(t, err)
	require.NotNil(t, from)
	assert.Equal(t, "2026-01-02", from.Format("2006-01-02"))

	to, err := ParseQueryDate(req, "to")
	require.NoError(t, err)
	assert.Nil(t, to)

	_, err = ParseQueryUUID(req, "operator")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.True(t, ParseQueryBool(req, "unassigned"))
	assert.False(t, ParseQueryBool(req, "missing"))
}

func TestParseIDParam(t *testing.T) {
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("requestId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	id, err := ParseIDParam(withParam("42"), "requestId")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"0", "-3", "SR-0042", ""} {
		_, err := ParseIDParam(withParam(bad), "requestId")
		assert.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "value %q", bad)
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hola", SanitizeString("  hola  ", 10))
	assert.Equal(t, "ho", SanitizeString("hola", 2))
	assert.Equal(t, "calle 10 sur", SanitizeString("calle\t 10\n\nsur", 0))
	assert.Equal(t, "Ñuñoa", SanitizeString("Ñuñoa 1234", 5))
	assert.Equal(t, "a", SanitizeString("a b", 2))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 10))
}
