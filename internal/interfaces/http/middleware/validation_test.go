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

	"github.com/erp/backoffice/internal/interfaces/http/dto"
)

type bindTarget struct {
	Name   string `json:"name" binding:"required,max=5"`
	Phone  string `json:"phone" binding:"required,phone"`
	Points int64  `json:"points" binding:"gt=0"`
}

func bindRouter() *gin.Engine {
	SetupValidator()
	r := gin.New()
	r.Use(RequestID())
	r.POST("/bind", func(c *gin.Context) {
		var body bindTarget
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func post(r http.Handler, body string) (*httptest.ResponseRecorder, dto.Response) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(body)))
	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestValidation(t *testing.T) {
	r := bindRouter()

	t.Run("valid body", func(t *testing.T) {
		w, _ := post(r, `{"name":"Ann","phone":"254712345678","points":5}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		w, resp := post(r, `{"name":"Annabel","phone":"12ab","points":0}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		got := map[string]string{}
		for _, d := range resp.Error.Details {
			got[d.Field] = d.Message
		}
		assert.Equal(t, map[string]string{
			"name":   "Must be at most 5 characters",
			"phone":  "Invalid phone number",
			"points": "Must be greater than 0",
		}, got)
	})

	t.Run("malformed json", func(t *testing.T) {
		w, resp := post(r, `{"name":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})
}
