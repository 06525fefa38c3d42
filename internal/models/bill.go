package models

import (
	"time"

	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
)

// Forward moves collected money into the admin's approval queue.
func (b *BillTransaction) Forward(actorID string, now time.Time) error {
	if b.RecipientID != actorID {
		return apperr.PermissionDenied("transaction %s is held by %s", b.ID, b.RecipientID)
	}
	next, err := b.Status.Next(EventForward)
	if err != nil {
		return err
	}
	b.Status = next
	b.ForwardedAt = &now
	return nil
}

func (b *BillTransaction) review(reviewerID string, ev Event, now time.Time) error {
	next, err := b.Status.Next(ev)
	if err != nil {
		return err
	}
	b.Status = next
	b.ReviewedBy = reviewerID
	b.ReviewedAt = &now
	return nil
}

func (b *BillTransaction) Accept(reviewerID string, now time.Time) error {
	return b.review(reviewerID, EventAccept, now)
}

// Reject hands the money back to the field actor, who may forward it again.
func (b *BillTransaction) Reject(reviewerID string, now time.Time) error {
	if err := b.review(reviewerID, EventReject, now); err != nil {
		return err
	}
	b.ForwardedAt = nil
	b.RejectCount++
	return nil
}

// WalletTotals are the admin-side sums over all bill transactions.
type WalletTotals struct {
	Collected       decimal.Decimal            `json:"collected"`
	PendingApproval decimal.Decimal            `json:"pending_approval"`
	ByRecipient     map[string]RecipientTotals `json:"by_recipient"`
}

// RecipientTotals are the sums over one field actor's transactions.
type RecipientTotals struct {
	Received    decimal.Decimal `json:"received"`
	Pending     decimal.Decimal `json:"pending"`
	PaidToAdmin decimal.Decimal `json:"paid_to_admin"`
	ReadyToSend decimal.Decimal `json:"ready_to_send"`
}

func (t *RecipientTotals) add(b *BillTransaction) {
	switch b.Status {
	case BillReceived:
		t.Received = t.Received.Add(b.Amount)
		t.ReadyToSend = t.ReadyToSend.Add(b.Amount)
	case BillPending:
		t.Pending = t.Pending.Add(b.Amount)
		t.ReadyToSend = t.ReadyToSend.Add(b.Amount)
	case BillPaidToAdmin:
		t.PaidToAdmin = t.PaidToAdmin.Add(b.Amount)
	}
}

// SumWallet computes admin totals. Received money is in neither admin total
// until its holder forwards it.
func SumWallet(txs []*BillTransaction) WalletTotals {
	totals := WalletTotals{ByRecipient: make(map[string]RecipientTotals)}
	for _, b := range txs {
		switch b.Status {
		case BillPaidToAdmin:
			totals.Collected = totals.Collected.Add(b.Amount)
		case BillPending:
			totals.PendingApproval = totals.PendingApproval.Add(b.Amount)
		}
		rt := totals.ByRecipient[b.RecipientID]
		rt.add(b)
		totals.ByRecipient[b.RecipientID] = rt
	}
	return totals
}

// SumRecipient computes one field actor's own totals.
func SumRecipient(recipientID string, txs []*BillTransaction) RecipientTotals {
	var t RecipientTotals
	for _, b := range txs {
		if b.RecipientID == recipientID {
			t.add(b)
		}
	}
	return t
}
