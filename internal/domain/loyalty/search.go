package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CustomerDocument is the search index projection of a customer
type CustomerDocument struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email,omitempty"`
	Tier           Tier   `json:"tier"`
	PointsBalance  int64  `json:"points_balance"`
	PointsEarned   int64  `json:"points_earned"`
	PointsRedeemed int64  `json:"points_redeemed"`
	JoinDate       int64  `json:"join_date"` // unix seconds
}

// DefaultSearchAttributes are the attributes retrieved from the index
var DefaultSearchAttributes = []string{
	"id", "organization_id", "name", "phone", "email", "tier",
	"points_balance", "points_earned", "points_redeemed", "join_date",
}

// SearchRequest is a full-text query scoped to one organization
type SearchRequest struct {
	OrganizationID uuid.UUID
	Query          string
	Limit          int64
	Attributes     []string
}

// SearchIndex is the eventually consistent full-text view over customers
type SearchIndex interface {
	Search(ctx context.Context, req SearchRequest) ([]CustomerDocument, error)
	Upsert(ctx context.Context, docs ...CustomerDocument) error
}

// DocumentFromCustomer projects a customer into its index document
func DocumentFromCustomer(c *Customer) CustomerDocument {
	return CustomerDocument{
		ID:             c.ID.String(),
		OrganizationID: c.OrganizationID.String(),
		Name:           c.Name,
		Phone:          c.Phone,
		Email:          c.Email,
		Tier:           c.Tier,
		PointsBalance:  c.Points.Balance,
		PointsEarned:   c.Points.Earned,
		PointsRedeemed: c.Points.Redeemed,
		JoinDate:       c.JoinDate.Unix(),
	}
}

// ToCustomer rebuilds a customer snapshot from an index document.
// Documents with malformed ids yield nil.
func (d CustomerDocument) ToCustomer() *Customer {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil
	}
	orgID, err := uuid.Parse(d.OrganizationID)
	if err != nil {
		return nil
	}
	c := &Customer{
		Name:  d.Name,
		Phone: d.Phone,
		Email: d.Email,
		Tier:  d.Tier,
		Points: LoyaltyPoints{
			Earned:   d.PointsEarned,
			Redeemed: d.PointsRedeemed,
			Balance:  d.PointsBalance,
		},
	}
	c.ID = id
	c.OrganizationID = orgID
	if d.JoinDate > 0 {
		c.JoinDate = time.Unix(d.JoinDate, 0).UTC()
	}
	if !c.Tier.IsValid() {
		c.Tier = TierForPoints(c.Points.Earned)
	}
	return c
}
