package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/trackpay/trackpay-server/internal/models"
)

// Payment validation failures detected under the row lock. The service layer
// translates these into client-facing validation errors.
var (
	ErrPaidBelowRecorded = errors.New("new paid total is below the recorded paid amount")
	ErrPaidExceedsAmount = errors.New("paid total exceeds the purchase amount")
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Customer operations
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomer(ctx context.Context, customerID, userID string) (*models.Customer, error)
	GetCustomerWithPurchases(ctx context.Context, customerID, userID string) (*models.Customer, error)
	ListCustomersWithPurchases(ctx context.Context, userID string) ([]models.Customer, error)
	UpdateCustomer(ctx context.Context, customer *models.Customer) error
	DeleteCustomer(ctx context.Context, customerID, userID string) error

	// Purchase operations
	GetPurchase(ctx context.Context, purchaseID, customerID string) (*models.Purchase, error)
	CreatePurchase(ctx context.Context, purchase *models.Purchase, income *models.Transaction) error
	ApplyPayment(ctx context.Context, purchaseID, customerID string, newPaid decimal.Decimal, income *models.Transaction) (*models.Purchase, decimal.Decimal, error)

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	ListTransactions(ctx context.Context, userID string, filter models.TransactionFilter) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id, userID string) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id, userID string) error

	// Health
	Ping(ctx context.Context) error
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// Ping verifies the database connection is alive
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Password, user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT * FROM users WHERE username = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

// Customer repository methods
func (r *PostgresRepository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (id, user_id, name, phone, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		customer.ID, customer.UserID, customer.Name, customer.Phone,
		customer.Location, customer.CreatedAt, customer.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetCustomer(ctx context.Context, customerID, userID string) (*models.Customer, error) {
	query := `SELECT * FROM customers WHERE id = $1 AND user_id = $2`

	var customer models.Customer
	err := r.db.GetContext(ctx, &customer, query, customerID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Customer not found or not owned by this user
		}
		return nil, err
	}

	return &customer, nil
}

func (r *PostgresRepository) GetCustomerWithPurchases(ctx context.Context, customerID, userID string) (*models.Customer, error) {
	customer, err := r.GetCustomer(ctx, customerID, userID)
	if err != nil || customer == nil {
		return customer, err
	}

	purchases := []models.Purchase{}
	query := `SELECT * FROM purchases WHERE customer_id = $1 ORDER BY date DESC`
	if err := r.db.SelectContext(ctx, &purchases, query, customerID); err != nil {
		return nil, err
	}

	customer.Purchases = purchases
	return customer, nil
}

func (r *PostgresRepository) ListCustomersWithPurchases(ctx context.Context, userID string) ([]models.Customer, error) {
	customers := []models.Customer{}
	query := `SELECT * FROM customers WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &customers, query, userID); err != nil {
		return nil, err
	}

	if len(customers) == 0 {
		return customers, nil
	}

	// Fetch all purchases for this user's customers in one query and group
	// them in memory
	purchases := []models.Purchase{}
	purchaseQuery := `
		SELECT p.* FROM purchases p
		JOIN customers c ON p.customer_id = c.id
		WHERE c.user_id = $1
		ORDER BY p.date DESC
	`
	if err := r.db.SelectContext(ctx, &purchases, purchaseQuery, userID); err != nil {
		return nil, err
	}

	byCustomer := make(map[string][]models.Purchase, len(customers))
	for _, p := range purchases {
		byCustomer[p.CustomerID] = append(byCustomer[p.CustomerID], p)
	}

	for i := range customers {
		if list, ok := byCustomer[customers[i].ID]; ok {
			customers[i].Purchases = list
		} else {
			customers[i].Purchases = []models.Purchase{}
		}
	}

	return customers, nil
}

func (r *PostgresRepository) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	query := `
		UPDATE customers SET name = $1, phone = $2, location = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6
	`

	customer.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		customer.Name, customer.Phone, customer.Location, customer.UpdatedAt,
		customer.ID, customer.UserID)

	return err
}

func (r *PostgresRepository) DeleteCustomer(ctx context.Context, customerID, userID string) error {
	// Purchases cascade via the foreign key
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM customers WHERE id = $1 AND user_id = $2`, customerID, userID)
	return err
}

// Purchase repository methods
func (r *PostgresRepository) GetPurchase(ctx context.Context, purchaseID, customerID string) (*models.Purchase, error) {
	query := `SELECT * FROM purchases WHERE id = $1 AND customer_id = $2`

	var purchase models.Purchase
	err := r.db.GetContext(ctx, &purchase, query, purchaseID, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Purchase not found
		}
		return nil, err
	}

	return &purchase, nil
}

// CreatePurchase inserts the purchase and, when income is non-nil, the
// matching income transaction in a single database transaction. Either both
// rows exist afterwards or neither does.
func (r *PostgresRepository) CreatePurchase(ctx context.Context, purchase *models.Purchase, income *models.Transaction) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if purchase.ID == "" {
		purchase.ID = uuid.New().String()
	}
	purchase.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO purchases (id, customer_id, amount, paid, description, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.ExecContext(ctx, query,
		purchase.ID, purchase.CustomerID, purchase.Amount, purchase.Paid,
		purchase.Description, purchase.Date, purchase.CreatedAt)
	if err != nil {
		return err
	}

	if income != nil {
		err = insertTransactionTx(ctx, tx, income)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ApplyPayment sets the purchase's paid column to newPaid and posts the delta
// as an income transaction, all in one database transaction. The purchase row
// is locked for the read-modify-write so concurrent payments cannot lose
// updates. The income template's Amount is filled with the computed delta; no
// transaction is inserted when the delta is zero.
//
// Returns the updated purchase and the delta, or (nil, 0, nil) when the
// purchase does not exist under the given customer.
func (r *PostgresRepository) ApplyPayment(
	ctx context.Context,
	purchaseID string,
	customerID string,
	newPaid decimal.Decimal,
	income *models.Transaction,
) (*models.Purchase, decimal.Decimal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, decimal.Zero, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var purchase models.Purchase
	err = tx.GetContext(ctx, &purchase,
		`SELECT * FROM purchases WHERE id = $1 AND customer_id = $2 FOR UPDATE`,
		purchaseID, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			tx.Rollback()
			return nil, decimal.Zero, nil // Purchase not found
		}
		return nil, decimal.Zero, err
	}

	delta := newPaid.Sub(purchase.Paid)

	if delta.IsNegative() {
		err = ErrPaidBelowRecorded
		return nil, decimal.Zero, err
	}
	if newPaid.GreaterThan(purchase.Amount) {
		err = ErrPaidExceedsAmount
		return nil, decimal.Zero, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE purchases SET paid = $1 WHERE id = $2`, newPaid, purchase.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	if income != nil && delta.IsPositive() {
		income.Amount = delta
		err = insertTransactionTx(ctx, tx, income)
		if err != nil {
			return nil, decimal.Zero, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, decimal.Zero, err
	}

	purchase.Paid = newPaid
	return &purchase, delta, nil
}

// Transaction repository methods

// insertTransactionTx inserts a dashboard transaction using the given
// executor, so it can run standalone or inside a purchase-sync transaction.
func insertTransactionTx(ctx context.Context, e sqlx.ExtContext, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.Date.IsZero() {
		txn.Date = time.Now().UTC()
	}
	txn.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO transactions (id, user_id, type, amount, category, description, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := e.ExecContext(ctx, query,
		txn.ID, txn.UserID, txn.Type, txn.Amount, txn.Category,
		txn.Description, txn.Date, txn.CreatedAt)

	return err
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return insertTransactionTx(ctx, r.db, txn)
}

func (r *PostgresRepository) ListTransactions(
	ctx context.Context,
	userID string,
	filter models.TransactionFilter,
) ([]models.Transaction, error) {
	query := `SELECT * FROM transactions WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}

	query += ` ORDER BY date DESC`

	transactions := []models.Transaction{}
	err := r.db.SelectContext(ctx, &transactions, query, args...)
	if err != nil {
		return nil, err
	}

	return transactions, nil
}

func (r *PostgresRepository) GetTransaction(ctx context.Context, id, userID string) (*models.Transaction, error) {
	query := `SELECT * FROM transactions WHERE id = $1 AND user_id = $2`

	var txn models.Transaction
	err := r.db.GetContext(ctx, &txn, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Transaction not found
		}
		return nil, err
	}

	return &txn, nil
}

func (r *PostgresRepository) DeleteTransaction(ctx context.Context, id, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}
