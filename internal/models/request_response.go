package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request models
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateCustomerRequest struct {
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Location *string `json:"location"`
}

type UpdateCustomerRequest struct {
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Location *string `json:"location"`
}

// CreatePurchaseRequest records a new debt. Amount accepts a JSON number or a
// numeric string; a missing or zero amount is rejected.
type CreatePurchaseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Paid        decimal.Decimal `json:"paid"`
	Description string          `json:"description"`
	Date        *time.Time      `json:"date"`
}

// UpdatePaymentRequest carries the new absolute paid total for a purchase,
// not an increment. Retrying the same request is a no-op for the ledger.
type UpdatePaymentRequest struct {
	Paid *decimal.Decimal `json:"paid" binding:"required"`
}

type CreateTransactionRequest struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description *string         `json:"description"`
	Date        *time.Time      `json:"date"`
}

// Response models
type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type AuthResponse struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type CustomersResponse struct {
	Customers []Customer    `json:"customers"`
	Summary   LedgerSummary `json:"summary"`
}

type TransactionSummary struct {
	Income            decimal.Decimal            `json:"income"`
	Expense           decimal.Decimal            `json:"expense"`
	Balance           decimal.Decimal            `json:"balance"`
	CategoryBreakdown map[string]decimal.Decimal `json:"categoryBreakdown"`
}

type HealthResponse struct {
	Status    string  `json:"status"`
	Database  string  `json:"database"`
	Uptime    float64 `json:"uptime,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type AppConfigResponse struct {
	LatestVersion string `json:"latestVersion"`
	ForceUpdate   bool   `json:"forceUpdate"`
	UpdateURL     string `json:"updateUrl"`
	Message       string `json:"message"`
}

type RootResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
