package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind domain.ErrorKind
		want int
	}{
		{domain.KindValidation, http.StatusBadRequest},
		{domain.KindInvalidState, http.StatusBadRequest},
		{domain.KindConflict, http.StatusConflict},
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindForbidden, http.StatusForbidden},
		{domain.KindUnauthorized, http.StatusUnauthorized},
		{domain.KindUnexpected, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestError(t *testing.T) {
	c, w := newContext()
	Error(c, domain.NewFieldValidationError(domain.FieldError{Field: "end_time", Message: "must be after start_time"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "end_time", env.Errors[0].Field)

	c, w = newContext()
	Error(c, errors.New("pq: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w).Message)
	assert.Len(t, c.Errors, 1)
}

func TestBindError(t *testing.T) {
	type payload struct {
		SpotNumber string `json:"spot_number" binding:"required"`
		Status     string `json:"status" binding:"omitempty,oneof=available maintenance"`
	}

	c, w := newContext()
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"broken"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var p payload
	err := c.ShouldBindJSON(&p)
	require.Error(t, err)
	BindError(c, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	fields := map[string]string{}
	for _, fe := range env.Errors {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "is required", fields["spot_number"])
	assert.Equal(t, "must be one of [available maintenance]", fields["status"])
}

func TestPaginated(t *testing.T) {
	c, w := newContext()
	Paginated(c, []string{"a", "b"}, 5, 1, 2)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data Page `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(5), body.Data.Total)
	assert.Equal(t, 3, body.Data.TotalPages)
}
