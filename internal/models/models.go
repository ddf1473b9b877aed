package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionTypeIncome  = "income"
	TransactionTypeExpense = "expense"
)

// Categories used by the purchase-payment sync
const (
	CategoryCustomerPayment = "Customer Payment"
	CategoryDebtRecovery    = "Debt Recovery"
)

// User represents a registered user
type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Customer is a counterparty the user extends credit to. All reads and writes
// are filtered by UserID.
type Customer struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"userId"`
	Name      string     `db:"name" json:"name"`
	Phone     string     `db:"phone" json:"phone"`
	Location  *string    `db:"location" json:"location"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	Purchases []Purchase `db:"-" json:"purchases"`
}

// Purchase is a debt record against a customer. Paid accumulates over time
// and must never exceed Amount.
type Purchase struct {
	ID          string          `db:"id" json:"id"`
	CustomerID  string          `db:"customer_id" json:"customerId"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Paid        decimal.Decimal `db:"paid" json:"paid"`
	Description string          `db:"description" json:"description"`
	Date        time.Time       `db:"date" json:"date"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// Pending returns the outstanding balance of the purchase.
func (p *Purchase) Pending() decimal.Decimal {
	return p.Amount.Sub(p.Paid)
}

// Transaction is a dashboard ledger entry belonging to a user
type Transaction struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"userId"`
	Type        string          `db:"type" json:"type"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Category    string          `db:"category" json:"category"`
	Description *string         `db:"description" json:"description"`
	Date        time.Time       `db:"date" json:"date"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// LedgerSummary aggregates totals over a set of purchases
type LedgerSummary struct {
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	TotalPending decimal.Decimal `json:"totalPending"`
}

// PurchaseTotals computes the aggregate summary for a purchase collection.
// Totals are derived on read; nothing is stored.
func PurchaseTotals(purchases []Purchase) LedgerSummary {
	summary := LedgerSummary{
		TotalAmount:  decimal.Zero,
		TotalPending: decimal.Zero,
	}

	for i := range purchases {
		summary.TotalAmount = summary.TotalAmount.Add(purchases[i].Amount)
		summary.TotalPending = summary.TotalPending.Add(purchases[i].Pending())
	}

	return summary
}

// TransactionFilter narrows a transaction listing. Zero values mean no filter
// for that field.
type TransactionFilter struct {
	Type      string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
}
