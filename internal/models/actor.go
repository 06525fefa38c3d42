package models

import "strings"

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
	RoleSales      = "sales"
	RoleDelivery   = "delivery"
	RoleCustomer   = "customer"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	CustomerID string `json:"customer_id,omitempty"`
}

// IsAdminRole reports whether role bypasses permission sets.
func IsAdminRole(role string) bool {
	return strings.EqualFold(role, RoleAdmin) || strings.EqualFold(role, RoleSuperAdmin)
}

func (a Actor) IsAdmin() bool {
	return IsAdminRole(a.Role)
}

func (a Actor) Is(role string) bool {
	return strings.EqualFold(a.Role, role)
}

// RecipientType returns how collected money is attributed to a field actor.
func (a Actor) RecipientType() (RecipientType, bool) {
	switch {
	case a.Is(RoleDelivery):
		return RecipientDelivery, true
	case a.Is(RoleSales):
		return RecipientSales, true
	}
	return "", false
}

func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role, CustomerID: u.CustomerID}
}

// CanSeeOrder: delivery users see their own assignments, customers their own orders.
func (a Actor) CanSeeOrder(o *Order) bool {
	switch {
	case a.IsAdmin(), a.Is(RoleSales):
		return true
	case a.Is(RoleDelivery):
		return o.AssignedTo == a.UserID
	case a.Is(RoleCustomer):
		return o.CustomerID == a.CustomerID
	}
	return false
}

func (a Actor) CanSeeRequest(r *OrderRequest) bool {
	if a.Is(RoleCustomer) {
		return r.CustomerID == a.CustomerID
	}
	return true
}

// CanSeeBill: field actors see what they collected, customers what they paid.
func (a Actor) CanSeeBill(b *BillTransaction) bool {
	switch {
	case a.IsAdmin():
		return true
	case a.Is(RoleCustomer):
		return b.CustomerID == a.CustomerID
	}
	return b.RecipientID == a.UserID
}
