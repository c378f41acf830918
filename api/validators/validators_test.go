package validators

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

type lineBody struct {
	LotID    string          `json:"lot_id" validate:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

type movementBody struct {
	Reference *string    `json:"reference,omitempty" validate:"omitempty,max=5"`
	Lines     []lineBody `json:"lines" validate:"required,min=1,dive"`
}

func decode(t *testing.T, body string) (movementBody, error) {
	t.Helper()
	var dest movementBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return dest, DecodeJSONBody(req, &dest)
}

func validationDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	var typed *pkgerrors.Error
	require.True(t, errors.As(err, &typed), "expected *errors.Error, got %T", err)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, _ := typed.Details().(map[string]string)
	return details
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(t, `{"lines":[{"lot_id":"0b7f3c8e-8a57-4a8e-9d3f-0c5d1f1a2b3c","quantity":"1.5"}]}`)
	require.NoError(t, err)
	assert.True(t, got.Lines[0].Quantity.Equal(decimal.RequireFromString("1.5")))
}

func TestDecodeJSONBodyReportsFieldPaths(t *testing.T) {
	_, err := decode(t, `{"reference":"too long","lines":[{"lot_id":"nope","quantity":0}]}`)
	details := validationDetails(t, err)
	assert.Equal(t, "must be at most 5", details["reference"])
	assert.Equal(t, "must be a uuid", details["lines[0].lot_id"])
	assert.Equal(t, "must be greater than 0", details["lines[0].quantity"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"lines":[],"bogus":true}`,
		"trailing data": `{"lines":[]} {"lines":[]}`,
		"wrong type":    `{"lines":"many"}`,
	}
	for name, body := range cases {
		_, err := decode(t, body)
		var typed *pkgerrors.Error
		if assert.True(t, errors.As(err, &typed), name) {
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code(), name)
		}
	}
}

func TestDecodeJSONBodyLimitsSize(t *testing.T) {
	huge := `{"reference":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	_, err := decode(t, huge)
	var typed *pkgerrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "request body too large", typed.Message())
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "dock 4", SanitizeString("  dock 4 \n", 0))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 10))
	assert.Equal(t, "line1\nline2", SanitizeString("line1\nline2", 0))
	// "ñ" is two bytes; a cut through it keeps only whole runes
	assert.Equal(t, "a", SanitizeString("añb", 2))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&bad=x&big=500", nil)
	v, err := ParseQueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	v, err = ParseQueryInt(req, "missing", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = ParseQueryInt(req, "bad", 10, 1, 100)
	assert.Error(t, err)
	_, err = ParseQueryInt(req, "big", 10, 1, 100)
	assert.Error(t, err)
}

func TestParseQueryTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-03-01&to=2026-03-02T10:00:00Z&bad=yesterday", nil)
	from, err := ParseQueryTime(req, "from")
	require.NoError(t, err)
	assert.Equal(t, 2026, from.Year())

	to, err := ParseQueryTime(req, "to")
	require.NoError(t, err)
	assert.Equal(t, 10, to.Hour())

	_, err = ParseQueryTime(req, "bad")
	assert.Error(t, err)
}
