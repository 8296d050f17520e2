package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mediadesk/mediadesk/pkg/response"
)

type bindProbePayload struct {
	UserID string   `json:"user_id" validate:"required"`
	Items  []string `json:"items" validate:"required,min=1,dive,required"`
}

func newJSONContext(t *testing.T, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, recorder
}

func decodeErrorResponse(t *testing.T, recorder *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	return payload
}

func TestBindAndValidateAcceptsValidPayload(t *testing.T) {
	c, recorder := newJSONContext(t, `{"user_id":"user-1","items":["a"]}`)

	var body bindProbePayload
	require.True(t, bindAndValidate(c, &body))
	require.Equal(t, "user-1", body.UserID)
	require.Empty(t, recorder.Body.Bytes())
}

func TestBindAndValidateRejectsMalformedJSON(t *testing.T) {
	c, recorder := newJSONContext(t, `{"user_id":`)

	var body bindProbePayload
	require.False(t, bindAndValidate(c, &body))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	payload := decodeErrorResponse(t, recorder)
	require.False(t, payload.Success)
	require.Equal(t, "BAD_REQUEST", payload.Error.Code)
}

func TestBindAndValidateSurfacesFieldErrors(t *testing.T) {
	c, recorder := newJSONContext(t, `{"items":[]}`)

	var body bindProbePayload
	require.False(t, bindAndValidate(c, &body))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	payload := decodeErrorResponse(t, recorder)
	require.False(t, payload.Success)
	require.Equal(t, "VALIDATION_ERROR", payload.Error.Code)
	require.Contains(t, payload.Error.Message, "user id is required")
	require.Contains(t, payload.Error.Message, "items")
}
