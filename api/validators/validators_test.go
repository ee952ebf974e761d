package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionBody struct {
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	Qty           int    `json:"qty" validate:"gte=0"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_email":"jordan@example.test","qty":2}`))
	var body sessionBody
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, "jordan@example.test", body.CustomerEmail)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"grand_total":1}`))
	var body sessionBody
	err := DecodeJSONBody(req, &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_email":"nope","qty":-1}`))
	var body sessionBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email", details["customer_email"])
	assert.Equal(t, "must be greater than or equal to 0", details["qty"])
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?download=true&bad=maybe", nil)
	v, err := ParseQueryBool(req, "download")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = ParseQueryBool(req, "missing")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = ParseQueryBool(req, "bad")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParsePathID(t *testing.T) {
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("orderId", value)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	id, err := ParsePathID(withParam("42"), "orderId")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := ParsePathID(withParam(bad), "orderId")
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), bad)
	}
}
