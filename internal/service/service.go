package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/trackpay/trackpay-server/internal/models"
	"github.com/trackpay/trackpay-server/internal/repository"
)

const minPasswordLength = 6

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	CurrentUser(ctx context.Context, userID string) (*models.UserProfile, error)

	// Customer operations
	ListCustomers(ctx context.Context, userID string) (*models.CustomersResponse, error)
	GetCustomer(ctx context.Context, userID, customerID string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, userID string, req models.CreateCustomerRequest) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, userID, customerID string, req models.UpdateCustomerRequest) (*models.Customer, error)
	DeleteCustomer(ctx context.Context, userID, customerID string) error

	// Purchase-payment synchronizer
	RecordPurchase(ctx context.Context, userID, customerID string, req models.CreatePurchaseRequest) (*models.Customer, error)
	RecordPayment(ctx context.Context, userID, customerID, purchaseID string, newPaid decimal.Decimal) (*models.Customer, error)

	// Transaction operations
	ListTransactions(ctx context.Context, userID string, filter models.TransactionFilter) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, userID string, req models.CreateTransactionRequest) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	TransactionSummary(ctx context.Context, userID string, filter models.TransactionFilter) (*models.TransactionSummary, error)

	// Health
	Health(ctx context.Context) (*models.HealthResponse, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	jwtSecret     []byte
	tokenDuration time.Duration
	startTime     time.Time
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, jwtSecret string) Service {
	return &DefaultService{
		repo:          repo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 30 * 24 * time.Hour, // 30 days token validity
		startTime:     time.Now(),
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, validation("Username and password are required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, validation("Password must be at least 6 characters")
	}

	// Check if user already exists
	existingUser, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, ErrUsernameTaken
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// Create the user
	user := &models.User{
		ID:       uuid.New().String(),
		Username: req.Username,
		Password: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Token: token,
		User: models.AuthUser{
			ID:       user.ID,
			Username: user.Username,
		},
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, validation("Username and password are required")
	}

	// Get the user
	user, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Token: token,
		User: models.AuthUser{
			ID:       user.ID,
			Username: user.Username,
		},
	}, nil
}

func (s *DefaultService) CurrentUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, ErrUserNotFound
	}

	return &models.UserProfile{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}, nil
}

// Customer operations
func (s *DefaultService) ListCustomers(ctx context.Context, userID string) (*models.CustomersResponse, error) {
	customers, err := s.repo.ListCustomersWithPurchases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing customers: %w", err)
	}

	// Aggregate the summary over every purchase of every customer
	all := []models.Purchase{}
	for i := range customers {
		all = append(all, customers[i].Purchases...)
	}

	return &models.CustomersResponse{
		Customers: customers,
		Summary:   models.PurchaseTotals(all),
	}, nil
}

func (s *DefaultService) GetCustomer(ctx context.Context, userID, customerID string) (*models.Customer, error) {
	customer, err := s.repo.GetCustomerWithPurchases(ctx, customerID, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting customer: %w", err)
	}

	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	return customer, nil
}

func (s *DefaultService) CreateCustomer(ctx context.Context, userID string, req models.CreateCustomerRequest) (*models.Customer, error) {
	if req.Name == "" || req.Phone == "" {
		return nil, validation("Name and phone are required")
	}

	customer := &models.Customer{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      req.Name,
		Phone:     req.Phone,
		Location:  req.Location,
		Purchases: []models.Purchase{},
	}

	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("error creating customer: %w", err)
	}

	return customer, nil
}

func (s *DefaultService) UpdateCustomer(ctx context.Context, userID, customerID string, req models.UpdateCustomerRequest) (*models.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting customer: %w", err)
	}

	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	if req.Name != "" {
		customer.Name = req.Name
	}
	if req.Phone != "" {
		customer.Phone = req.Phone
	}
	if req.Location != nil {
		customer.Location = req.Location
	}

	if err := s.repo.UpdateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("error updating customer: %w", err)
	}

	return s.GetCustomer(ctx, userID, customerID)
}

func (s *DefaultService) DeleteCustomer(ctx context.Context, userID, customerID string) error {
	customer, err := s.repo.GetCustomer(ctx, customerID, userID)
	if err != nil {
		return fmt.Errorf("error getting customer: %w", err)
	}

	if customer == nil {
		return ErrCustomerNotFound
	}

	if err := s.repo.DeleteCustomer(ctx, customerID, userID); err != nil {
		return fmt.Errorf("error deleting customer: %w", err)
	}

	return nil
}

// Purchase-payment synchronizer.
//
// RecordPurchase inserts a debt record and, when an initial payment is made,
// posts that payment as dashboard income in the same database transaction.
func (s *DefaultService) RecordPurchase(ctx context.Context, userID, customerID string, req models.CreatePurchaseRequest) (*models.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting customer: %w", err)
	}

	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	if !req.Amount.IsPositive() {
		return nil, validation("Amount is required")
	}
	if req.Paid.IsNegative() {
		return nil, validation("Paid amount cannot be negative")
	}
	if req.Paid.GreaterThan(req.Amount) {
		return nil, validation("Paid amount cannot exceed the purchase amount")
	}

	description := req.Description
	if description == "" {
		description = "New Purchase"
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	purchase := &models.Purchase{
		ID:          uuid.New().String(),
		CustomerID:  customerID,
		Amount:      req.Amount,
		Paid:        req.Paid,
		Description: description,
		Date:        date,
	}

	// Only a purchase with money already paid posts to the dashboard
	var income *models.Transaction
	if req.Paid.IsPositive() {
		income = s.incomeTransaction(userID, models.CategoryCustomerPayment,
			paymentDescription(customer.Name, req.Description), date)
		income.Amount = req.Paid
	}

	if err := s.repo.CreatePurchase(ctx, purchase, income); err != nil {
		return nil, fmt.Errorf("error recording purchase: %w", err)
	}

	return s.GetCustomer(ctx, userID, customerID)
}

// RecordPayment sets a purchase's paid total to the supplied absolute value
// and posts the delta over the previously recorded total as dashboard income.
// The delta is computed under a row lock so concurrent payments serialize,
// and a retry with the same total is a ledger no-op.
func (s *DefaultService) RecordPayment(ctx context.Context, userID, customerID, purchaseID string, newPaid decimal.Decimal) (*models.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting customer: %w", err)
	}

	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	purchase, err := s.repo.GetPurchase(ctx, purchaseID, customerID)
	if err != nil {
		return nil, fmt.Errorf("error getting purchase: %w", err)
	}

	if purchase == nil {
		return nil, ErrPurchaseNotFound
	}

	// Amount is filled in by the repository with the locked delta
	income := s.incomeTransaction(userID, models.CategoryDebtRecovery,
		paymentDescription(customer.Name, purchase.Description), time.Now().UTC())

	updated, _, err := s.repo.ApplyPayment(ctx, purchaseID, customerID, newPaid, income)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPaidBelowRecorded):
			return nil, validation("Paid total cannot be lower than the amount already paid")
		case errors.Is(err, repository.ErrPaidExceedsAmount):
			return nil, validation("Paid amount cannot exceed the purchase amount")
		}
		return nil, fmt.Errorf("error recording payment: %w", err)
	}

	if updated == nil {
		return nil, ErrPurchaseNotFound
	}

	return s.GetCustomer(ctx, userID, customerID)
}

func (s *DefaultService) incomeTransaction(userID, category, description string, date time.Time) *models.Transaction {
	return &models.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        models.TransactionTypeIncome,
		Category:    category,
		Description: &description,
		Date:        date,
	}
}

func paymentDescription(customerName, purchaseDescription string) string {
	if purchaseDescription == "" {
		return fmt.Sprintf("Payment from %s", customerName)
	}
	return fmt.Sprintf("Payment from %s - %s", customerName, purchaseDescription)
}

// Transaction operations
func (s *DefaultService) ListTransactions(ctx context.Context, userID string, filter models.TransactionFilter) ([]models.Transaction, error) {
	transactions, err := s.repo.ListTransactions(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}

	return transactions, nil
}

func (s *DefaultService) CreateTransaction(ctx context.Context, userID string, req models.CreateTransactionRequest) (*models.Transaction, error) {
	if req.Type == "" || req.Category == "" || req.Amount.IsZero() {
		return nil, validation("Type, amount, and category are required")
	}
	if req.Type != models.TransactionTypeIncome && req.Type != models.TransactionTypeExpense {
		return nil, validation("Type must be income or expense")
	}
	if !req.Amount.IsPositive() {
		return nil, validation("Amount must be positive")
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	txn := &models.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        date,
	}

	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("error creating transaction: %w", err)
	}

	return txn, nil
}

func (s *DefaultService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	txn, err := s.repo.GetTransaction(ctx, transactionID, userID)
	if err != nil {
		return fmt.Errorf("error getting transaction: %w", err)
	}

	if txn == nil {
		return ErrTransactionNotFound
	}

	// Deleting a synced income transaction does not touch the purchase it
	// came from; the ledger is append-only apart from this explicit delete.
	if err := s.repo.DeleteTransaction(ctx, transactionID, userID); err != nil {
		return fmt.Errorf("error deleting transaction: %w", err)
	}

	return nil
}

func (s *DefaultService) TransactionSummary(ctx context.Context, userID string, filter models.TransactionFilter) (*models.TransactionSummary, error) {
	// Type and category filters do not apply to the summary
	filter.Type = ""
	filter.Category = ""

	transactions, err := s.repo.ListTransactions(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}

	summary := &models.TransactionSummary{
		Income:            decimal.Zero,
		Expense:           decimal.Zero,
		Balance:           decimal.Zero,
		CategoryBreakdown: map[string]decimal.Decimal{},
	}

	for i := range transactions {
		txn := &transactions[i]
		switch txn.Type {
		case models.TransactionTypeIncome:
			summary.Income = summary.Income.Add(txn.Amount)
		case models.TransactionTypeExpense:
			summary.Expense = summary.Expense.Add(txn.Amount)
			summary.CategoryBreakdown[txn.Category] = summary.CategoryBreakdown[txn.Category].Add(txn.Amount)
		}
	}

	summary.Balance = summary.Income.Sub(summary.Expense)
	return summary, nil
}

// Health reports database connectivity and process uptime
func (s *DefaultService) Health(ctx context.Context) (*models.HealthResponse, error) {
	if err := s.repo.Ping(ctx); err != nil {
		return &models.HealthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    err.Error(),
		}, err
	}

	return &models.HealthResponse{
		Status:    "healthy",
		Database:  "connected",
		Uptime:    time.Since(s.startTime).Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
