package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComputeTotals fills every line total and the grand total from quantities and unit prices.
func (r *OrderRequest) ComputeTotals() {
	total := decimal.Zero
	for i := range r.Items {
		r.Items[i].LineTotal = Money(r.Items[i].Quantity.Mul(r.Items[i].UnitPrice))
		total = total.Add(r.Items[i].LineTotal)
	}
	r.GrandTotal = total
}

func (r *OrderRequest) resolve(ev Event, adminID string, now time.Time) error {
	next, err := r.Status.Next(ev)
	if err != nil {
		return err
	}
	r.Status = next
	r.ResolvedBy = adminID
	r.ResolvedAt = &now
	return nil
}

func (r *OrderRequest) Approve(adminID string, now time.Time) error {
	return r.resolve(EventApprove, adminID, now)
}

func (r *OrderRequest) Reject(adminID, reason string, now time.Time) error {
	if err := r.resolve(EventReject, adminID, now); err != nil {
		return err
	}
	r.RejectionReason = reason
	return nil
}
