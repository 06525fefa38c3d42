package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/apperr"
)

func TestBillRejectAndResendCountsOnce(t *testing.T) {
	now := time.Now()
	direct := BillTransaction{ID: "b-1", RecipientID: "sales-1", Amount: dec("250"), Status: BillReceived}
	require.NoError(t, direct.Forward("sales-1", now))
	require.NoError(t, direct.Accept("admin", now))

	roundTrip := BillTransaction{ID: "b-2", RecipientID: "sales-1", Amount: dec("250"), Status: BillReceived}
	require.NoError(t, roundTrip.Forward("sales-1", now))
	require.NoError(t, roundTrip.Reject("admin", now))
	assert.Equal(t, BillReceived, roundTrip.Status)
	assert.Equal(t, 1, roundTrip.RejectCount)
	require.NoError(t, roundTrip.Forward("sales-1", now))
	require.NoError(t, roundTrip.Accept("admin", now))

	a := SumWallet([]*BillTransaction{&direct})
	b := SumWallet([]*BillTransaction{&roundTrip})
	assert.Equal(t, a.Collected.String(), b.Collected.String())
	assert.Equal(t, "250", b.Collected.String())
}

func TestBillForwardOnlyByHolder(t *testing.T) {
	b := BillTransaction{ID: "b-3", RecipientID: "driver-1", Amount: dec("10"), Status: BillReceived}
	assert.ErrorIs(t, b.Forward("driver-2", time.Now()), apperr.ErrPermissionDenied)
	assert.ErrorIs(t, b.Accept("admin", time.Now()), apperr.ErrInvalidTransition)
	assert.ErrorIs(t, b.Reject("admin", time.Now()), apperr.ErrInvalidTransition)
}

func TestSumWallet(t *testing.T) {
	txs := []*BillTransaction{
		{RecipientID: "d1", Amount: dec("100"), Status: BillReceived},
		{RecipientID: "d1", Amount: dec("40.5"), Status: BillPending},
		{RecipientID: "d1", Amount: dec("60"), Status: BillPaidToAdmin},
		{RecipientID: "s1", Amount: dec("15"), Status: BillPending},
		{RecipientID: "s1", Amount: dec("5"), Status: BillPaidToAdmin},
	}
	totals := SumWallet(txs)
	assert.Equal(t, "65", totals.Collected.String())
	assert.Equal(t, "55.5", totals.PendingApproval.String())
	assert.Equal(t, "140.5", totals.ByRecipient["d1"].ReadyToSend.String())
	assert.Equal(t, "15", totals.ByRecipient["s1"].ReadyToSend.String())

	own := SumRecipient("d1", txs)
	assert.Equal(t, "100", own.Received.String())
	assert.Equal(t, "40.5", own.Pending.String())
	assert.Equal(t, "140.5", own.ReadyToSend.String())
	assert.Equal(t, "60", own.PaidToAdmin.String())
}

func TestChequeDetailsValidate(t *testing.T) {
	err := (&ChequeDetails{Number: "000123", Date: "2026-10-01"}).Validate()
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "bank")

	var missing *ChequeDetails
	assert.ErrorIs(t, missing.Validate(), apperr.ErrValidation)

	assert.NoError(t, (&ChequeDetails{Number: "1", Bank: "B", Date: "2026-10-01"}).Validate())
}

func TestOrderRequestTotals(t *testing.T) {
	r := OrderRequest{Status: RequestPending, Items: []RequestItem{
		{ProductID: "p1", Quantity: dec("2.5"), UnitPrice: dec("4")},
		{ProductID: "p2", Quantity: dec("3"), UnitPrice: dec("1.25")},
	}}
	r.ComputeTotals()
	assert.Equal(t, "10", r.Items[0].LineTotal.String())
	assert.Equal(t, "13.75", r.GrandTotal.String())

	require.NoError(t, r.Reject("admin", "duplicate", time.Now()))
	assert.Equal(t, "duplicate", r.RejectionReason)
	assert.ErrorIs(t, r.Approve("admin", time.Now()), apperr.ErrInvalidTransition)
}
