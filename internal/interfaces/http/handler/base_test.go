package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
)

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"domain error keeps its message", shared.NewNotFoundError("customer"), http.StatusNotFound, dto.ErrCodeNotFound, "customer not found"},
		{"wrapped domain error", fmt.Errorf("redeem: %w", shared.ErrInsufficientBalance), http.StatusUnprocessableEntity, dto.ErrCodeInsufficientBalance, shared.ErrInsufficientBalance.Message},
		{"persistence failure", shared.NewPersistenceError("save customer", errors.New("disk full")), http.StatusInternalServerError, dto.ErrCodePersistence, "failed to save customer"},
		{"unknown error is hidden", errors.New("nil pointer"), http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			var h BaseHandler
			engine.GET("/", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w, resp := serve(t, engine, http.MethodGet, "/", nil, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}

func TestBaseHandler_Responses(t *testing.T) {
	engine := gin.New()
	var h BaseHandler
	engine.GET("/created", func(c *gin.Context) { h.Created(c, gin.H{"id": 1}) })
	engine.GET("/paged", func(c *gin.Context) { h.SuccessWithMeta(c, []int{1, 2}, 5, 1, 2) })
	engine.GET("/bad", func(c *gin.Context) { h.BadRequest(c, "nope") })

	w, resp := serve(t, engine, http.MethodGet, "/created", nil, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)

	_, resp = serve(t, engine, http.MethodGet, "/paged", nil, nil)
	if assert.NotNil(t, resp.Meta) {
		assert.Equal(t, 3, resp.Meta.TotalPages)
	}

	w, resp = serve(t, engine, http.MethodGet, "/bad", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
}
