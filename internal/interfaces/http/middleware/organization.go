package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
)

// Organization headers and context key
const (
	OrganizationIDHeader   = "X-Organization-ID"
	OrganizationSlugHeader = "X-Organization-Slug"
	OrganizationIDKey      = "organization_id"
)

// OrganizationResolver checks and resolves the organization a request names
type OrganizationResolver interface {
	ResolveID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ResolveSlug(ctx context.Context, slug string) (uuid.UUID, error)
}

// OrganizationContext resolves X-Organization-ID, or X-Organization-Slug
// when no id is sent, and stores the organization id in the gin context
// and the request context. Requests naming no active organization are
// rejected.
func OrganizationContext(resolver OrganizationResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			orgID uuid.UUID
			err   error
		)
		switch idHeader, slug := c.GetHeader(OrganizationIDHeader), c.GetHeader(OrganizationSlugHeader); {
		case idHeader != "":
			id, perr := uuid.Parse(idHeader)
			if perr != nil {
				abort(c, dto.ErrCodeValidation, "Invalid organization id")
				return
			}
			orgID, err = resolver.ResolveID(ctx, id)
		case slug != "":
			orgID, err = resolver.ResolveSlug(ctx, slug)
		default:
			abort(c, dto.ErrCodeOrganization, "Organization identification required")
			return
		}

		if err != nil {
			var domainErr *shared.DomainError
			if errors.As(err, &domainErr) {
				abort(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
				return
			}
			logger.Ctx(ctx, nil).Error("Organization resolution failed", zap.Error(err))
			abort(c, dto.ErrCodeInternal, "An unexpected error occurred")
			return
		}

		c.Set(OrganizationIDKey, orgID)
		ctx = logger.WithOrganizationID(ctx, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetOrganizationID returns the organization resolved by OrganizationContext
func GetOrganizationID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(OrganizationIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
