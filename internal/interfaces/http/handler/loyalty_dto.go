package handler

import "github.com/erp/backoffice/internal/interfaces/http/dto"

// CreateCustomerRequest registers a loyalty customer
type CreateCustomerRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Phone string `json:"phone" binding:"required,phone"`
	Email string `json:"email" binding:"omitempty,email,max=200"`
}

// AddPointsRequest credits points. Type defaults to EARNED.
type AddPointsRequest struct {
	Points      int64  `json:"points" binding:"gt=0"`
	Type        string `json:"type" binding:"max=20"`
	Description string `json:"description" binding:"required,max=500"`
	OrderID     string `json:"order_id" binding:"max=100"`
}

// RedeemPointsRequest debits points
type RedeemPointsRequest struct {
	Points       int64  `json:"points" binding:"gt=0"`
	Description  string `json:"description" binding:"required,max=500"`
	RedeemedFrom string `json:"redeemed_from" binding:"max=100"`
}

// CalculateDiscountRequest prices the tier discount of an order in points.
// A non-positive order total is valid and costs nothing.
type CalculateDiscountRequest struct {
	CustomerID   string  `json:"customer_id" binding:"required,uuid"`
	OrderTotal   float64 `json:"order_total"`
	PointsPerKES float64 `json:"points_per_kes" binding:"gte=0"`
}

// SearchCustomersRequest is the query of a customer search
type SearchCustomersRequest struct {
	Query string `form:"q"`
}

// GetCustomerRequest selects the optional history preview
type GetCustomerRequest struct {
	History bool `form:"history"`
}

// TransactionHistoryRequest filters and pages a customer's ledger
type TransactionHistoryRequest struct {
	dto.PageRequest
	Type string `form:"type" binding:"max=20"`
}

// InvalidateCacheRequest names the resource to drop; empty drops every
// cached key of the organization.
type InvalidateCacheRequest struct {
	Resource string `json:"resource"`
}
