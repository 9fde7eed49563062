package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{query: "", wantPage: 1, wantLimit: 20},
		{query: "page=3&limit=50", wantPage: 3, wantLimit: 50},
		{query: "page=-2&limit=0", wantPage: 1, wantLimit: 20},
		{query: "limit=1000", wantPage: 1, wantLimit: 100},
		{query: "page=9223372036854775807", wantPage: maxPage, wantLimit: 20},
		{query: "page=abc", wantPage: 1, wantLimit: 20},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)

			page, limit := parsePagination(c)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}
