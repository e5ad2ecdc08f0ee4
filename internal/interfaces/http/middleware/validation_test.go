package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripcore/backend/internal/interfaces/http/dto"
)

type reserveInput struct {
	ProviderType string `json:"provider_type" binding:"required,provider_type"`
	Date         string `json:"date" binding:"required,iso_date"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	Route        string `json:"route" binding:"omitempty,route"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req reserveInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})
	return router
}

func post(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupValidator_CustomTags(t *testing.T) {
	router := newValidationRouter()

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"valid", `{"provider_type":"hotel","date":"2025-10-07","quantity":2,"route":"JED-RUH"}`, http.StatusOK, ""},
		{"provider is case insensitive", `{"provider_type":"FLIGHT","date":"2025-10-07","quantity":1}`, http.StatusOK, ""},
		{"unknown provider", `{"provider_type":"cruise","date":"2025-10-07","quantity":1}`, http.StatusBadRequest, "provider_type"},
		{"bad date", `{"provider_type":"hotel","date":"07/10/2025","quantity":1}`, http.StatusBadRequest, "date"},
		{"bad route", `{"provider_type":"hotel","date":"2025-10-07","quantity":1,"route":"JED"}`, http.StatusBadRequest, "route"},
		{"zero quantity", `{"provider_type":"hotel","date":"2025-10-07","quantity":0}`, http.StatusBadRequest, "quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.field == "" {
				return
			}
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			require.Len(t, resp.Error.Details, 1)
			assert.Equal(t, tt.field, resp.Error.Details[0].Field)
		})
	}
}

func TestHandleValidationError_MalformedJSON(t *testing.T) {
	w := post(newValidationRouter(), `{"provider_type":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}
