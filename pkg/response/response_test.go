package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/studyhive/backend/internal/apperr"
)

func record(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	return w
}

func TestErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.NotFound("x"), http.StatusNotFound},
		{apperr.Forbidden("x"), http.StatusForbidden},
		{apperr.InvalidState("x"), http.StatusConflict},
		{apperr.InvalidArgument("x"), http.StatusBadRequest},
		{apperr.Conflict("x"), http.StatusConflict},
		{apperr.ResourceExhausted("x"), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := record(func(c *gin.Context) { Error(c, tc.err) })
		require.Equal(t, tc.status, w.Code, "error: %v", tc.err)
	}
}

func TestErrorBodyCarriesCode(t *testing.T) {
	w := record(func(c *gin.Context) { Error(c, apperr.InvalidState("quiz has already started")) })
	require.JSONEq(t,
		`{"success":false,"code":"invalid_state","error":"quiz has already started"}`,
		w.Body.String())
}

func TestOKEnvelope(t *testing.T) {
	w := record(func(c *gin.Context) { OK(c, gin.H{"status": "ok"}) })
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":true,"data":{"status":"ok"}}`, w.Body.String())
}
