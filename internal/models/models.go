package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCredit PaymentMethod = "credit"
	PaymentCash   PaymentMethod = "cash"
	PaymentCheque PaymentMethod = "cheque"
)

type Customer struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	Address         string          `json:"address"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Price     decimal.Decimal `json:"price"`
	Stock     decimal.Decimal `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
}

type Order struct {
	ID                string           `json:"id"`
	CustomerID        string           `json:"customer_id"`
	ProductID         string           `json:"product_id"`
	Unit              string           `json:"unit"`
	OrderedQuantity   decimal.Decimal  `json:"ordered_quantity"`
	DeliveredQuantity decimal.Decimal  `json:"delivered_quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	PaymentMethod     PaymentMethod    `json:"payment_method"`
	Remarks           string           `json:"remarks"`
	Status            OrderStatus      `json:"status"`
	AssignmentStatus  AssignmentStatus `json:"assignment_status"`
	AssignedTo        string           `json:"assigned_to,omitempty"`
	CreatedBy         string           `json:"created_by"`
	RequestID         string           `json:"request_id,omitempty"`
	OrderDate         time.Time        `json:"order_date"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Version           int64            `json:"version"`
}

// MarshalJSON adds the derived delivery_state so clients never keep their own copy.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		DeliveryState DeliveryState `json:"delivery_state"`
	}{plain(o), o.DeliveryState()})
}

type RequestItem struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderRequest struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customer_id"`
	RequestedBy     string          `json:"requested_by"`
	Items           []RequestItem   `json:"items"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	Remarks         string          `json:"remarks"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	Status          RequestStatus   `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ResolvedBy      string          `json:"resolved_by,omitempty"`
	RequestedAt     time.Time       `json:"requested_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
}

type ChequeDetails struct {
	Number string `json:"number"`
	Bank   string `json:"bank"`
	Date   string `json:"date"`
}

type RecipientType string

const (
	RecipientDelivery RecipientType = "delivery"
	RecipientSales    RecipientType = "sales"
)

type BillTransaction struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	Cheque        *ChequeDetails  `json:"cheque,omitempty"`
	RecipientID   string          `json:"recipient_id"`
	RecipientType RecipientType   `json:"recipient_type"`
	OrderID       string          `json:"order_id,omitempty"`
	BillRef       string          `json:"bill_ref,omitempty"`
	Status        BillStatus      `json:"status"`
	ReviewedBy    string          `json:"reviewed_by,omitempty"`
	RejectCount   int             `json:"reject_count"`
	CollectedAt   time.Time       `json:"collected_at"`
	ForwardedAt   *time.Time      `json:"forwarded_at,omitempty"`
	ReviewedAt    *time.Time      `json:"reviewed_at,omitempty"`
}

type Role struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CustomerID   string    `json:"customer_id,omitempty"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}
