package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	loyaltyapp "github.com/erp/backoffice/internal/application/loyalty"
)

// LoyaltyHandler serves the loyalty customer, points and discount endpoints
type LoyaltyHandler struct {
	BaseHandler
	lookup    *loyaltyapp.CustomerLookupService
	ledger    *loyaltyapp.LedgerService
	discounts *loyaltyapp.DiscountService
}

// NewLoyaltyHandler creates a LoyaltyHandler
func NewLoyaltyHandler(lookup *loyaltyapp.CustomerLookupService, ledger *loyaltyapp.LedgerService, discounts *loyaltyapp.DiscountService) *LoyaltyHandler {
	return &LoyaltyHandler{lookup: lookup, ledger: ledger, discounts: discounts}
}

// GetCustomerByPhone handles GET /loyalty/customers/by-phone/:phone
func (h *LoyaltyHandler) GetCustomerByPhone(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	resp, err := h.lookup.GetCustomerByPhone(c.Request.Context(), orgID, c.Param("phone"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SearchCustomers handles GET /loyalty/customers/search?q=
func (h *LoyaltyHandler) SearchCustomers(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req SearchCustomersRequest
	if !h.bindQuery(c, &req) {
		return
	}
	resp, err := h.lookup.SearchCustomers(c.Request.Context(), orgID, req.Query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// CreateCustomer handles POST /loyalty/customers
func (h *LoyaltyHandler) CreateCustomer(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req CreateCustomerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.lookup.CreateCustomer(c.Request.Context(), loyaltyapp.CreateCustomerCommand{
		OrganizationID: orgID,
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetCustomer handles GET /loyalty/customers/:id. ?history=true attaches
// the latest transactions.
func (h *LoyaltyHandler) GetCustomer(c *gin.Context) {
	orgID, id, ok := h.customerScope(c)
	if !ok {
		return
	}
	var req GetCustomerRequest
	if !h.bindQuery(c, &req) {
		return
	}
	resp, err := h.lookup.GetCustomerByID(c.Request.Context(), orgID, id, req.History)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AddPoints handles POST /loyalty/customers/:id/points
func (h *LoyaltyHandler) AddPoints(c *gin.Context) {
	orgID, id, ok := h.customerScope(c)
	if !ok {
		return
	}
	var req AddPointsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.ledger.Accrue(c.Request.Context(), loyaltyapp.AccrueCommand{
		OrganizationID: orgID,
		CustomerID:     id,
		Points:         req.Points,
		Type:           req.Type,
		Description:    req.Description,
		OrderID:        req.OrderID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RedeemPoints handles POST /loyalty/customers/:id/redeem
func (h *LoyaltyHandler) RedeemPoints(c *gin.Context) {
	orgID, id, ok := h.customerScope(c)
	if !ok {
		return
	}
	var req RedeemPointsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.ledger.Redeem(c.Request.Context(), loyaltyapp.RedeemCommand{
		OrganizationID: orgID,
		CustomerID:     id,
		Points:         req.Points,
		Description:    req.Description,
		RedeemedFrom:   req.RedeemedFrom,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListTransactions handles GET /loyalty/customers/:id/transactions
func (h *LoyaltyHandler) ListTransactions(c *gin.Context) {
	orgID, id, ok := h.customerScope(c)
	if !ok {
		return
	}
	var req TransactionHistoryRequest
	if !h.bindQuery(c, &req) {
		return
	}
	page, err := h.ledger.History(c.Request.Context(), loyaltyapp.HistoryQuery{
		OrganizationID: orgID,
		CustomerID:     id,
		Type:           req.Type,
		Page:           req.Page,
		PageSize:       req.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// CalculateDiscount handles POST /loyalty/discounts/calculate
func (h *LoyaltyHandler) CalculateDiscount(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req CalculateDiscountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.discounts.Calculate(c.Request.Context(), loyaltyapp.DiscountCommand{
		OrganizationID: orgID,
		CustomerID:     uuid.MustParse(req.CustomerID),
		OrderTotal:     req.OrderTotal,
		PointsPerKES:   req.PointsPerKES,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Reindex handles POST /loyalty/reindex
func (h *LoyaltyHandler) Reindex(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	resp, err := h.lookup.ReindexOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RegisterRoutes mounts the loyalty endpoints under rg
func (h *LoyaltyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/loyalty")
	customers := g.Group("/customers")
	customers.POST("", h.CreateCustomer)
	customers.GET("/search", h.SearchCustomers)
	customers.GET("/by-phone/:phone", h.GetCustomerByPhone)
	customers.GET("/:id", h.GetCustomer)
	customers.POST("/:id/points", h.AddPoints)
	customers.POST("/:id/redeem", h.RedeemPoints)
	customers.GET("/:id/transactions", h.ListTransactions)

	g.POST("/discounts/calculate", h.CalculateDiscount)
	g.POST("/reindex", h.Reindex)
}

func (h *LoyaltyHandler) customerScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, id, true
}
