package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trackpay/trackpay-server/internal/api/testutils"
	"github.com/trackpay/trackpay-server/internal/models"
)

func addPurchase(t *testing.T, testCtx *testutils.TestContext, token, customerID string, req models.CreatePurchaseRequest) (models.Customer, int) {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/customers/%s/purchases", customerID),
		req,
		testutils.AuthHeaders(token),
	)

	var customer models.Customer
	if w.Code == http.StatusCreated {
		err := json.Unmarshal(w.Body.Bytes(), &customer)
		assert.NoError(t, err)
	}

	return customer, w.Code
}

func updatePayment(t *testing.T, testCtx *testutils.TestContext, token, customerID, purchaseID string, paid decimal.Decimal) (models.Customer, int) {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		fmt.Sprintf("/api/customers/%s/purchases/%s", customerID, purchaseID),
		models.UpdatePaymentRequest{Paid: &paid},
		testutils.AuthHeaders(token),
	)

	var customer models.Customer
	if w.Code == http.StatusOK {
		err := json.Unmarshal(w.Body.Bytes(), &customer)
		assert.NoError(t, err)
	}

	return customer, w.Code
}

func listTransactions(t *testing.T, testCtx *testutils.TestContext, token, query string) []models.Transaction {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/transactions"+query,
		nil,
		testutils.AuthHeaders(token),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var transactions []models.Transaction
	err := json.Unmarshal(w.Body.Bytes(), &transactions)
	assert.NoError(t, err)

	return transactions
}

// The scenario from the dual-ledger sync rule: a purchase with an initial
// payment posts that payment as dashboard income, and a later payment posts
// only the delta.
func TestPurchaseAndPaymentSyncToDashboard(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	customer := createCustomer(t, testCtx, testCtx.TestUserJWT, "Asha", "555")

	// Purchase of 100 with 40 paid up front
	updated, code := addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{
		Amount:      decimal.NewFromInt(100),
		Paid:        decimal.NewFromInt(40),
		Description: "Rice and lentils",
	})
	assert.Equal(t, http.StatusCreated, code)
	assert.Len(t, updated.Purchases, 1)

	purchase := updated.Purchases[0]
	assert.True(t, purchase.Amount.Equal(decimal.NewFromInt(100)), "amount should be 100, got %s", purchase.Amount)
	assert.True(t, purchase.Paid.Equal(decimal.NewFromInt(40)), "paid should be 40, got %s", purchase.Paid)
	assert.Equal(t, "Rice and lentils", purchase.Description)

	// Exactly one income transaction for the initial payment
	transactions := listTransactions(t, testCtx, testCtx.TestUserJWT, "")
	assert.Len(t, transactions, 1)
	assert.Equal(t, models.TransactionTypeIncome, transactions[0].Type)
	assert.Equal(t, models.CategoryCustomerPayment, transactions[0].Category)
	assert.True(t, transactions[0].Amount.Equal(decimal.NewFromInt(40)))
	if assert.NotNil(t, transactions[0].Description) {
		assert.Contains(t, *transactions[0].Description, "Asha")
	}

	// Pay the rest: absolute total 100, delta 60
	updated, code = updatePayment(t, testCtx, testCtx.TestUserJWT, customer.ID, purchase.ID, decimal.NewFromInt(100))
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, updated.Purchases, 1)
	assert.True(t, updated.Purchases[0].Paid.Equal(decimal.NewFromInt(100)))
	assert.True(t, updated.Purchases[0].Pending().IsZero())

	transactions = listTransactions(t, testCtx, testCtx.TestUserJWT, "")
	assert.Len(t, transactions, 2)

	recovery := listTransactions(t, testCtx, testCtx.TestUserJWT, "?category=Debt+Recovery")
	assert.Len(t, recovery, 1)
	assert.True(t, recovery[0].Amount.Equal(decimal.NewFromInt(60)), "delta should be 60, got %s", recovery[0].Amount)

	// Summary: all income, no expenses
	total := decimal.Zero
	for _, txn := range transactions {
		total = total.Add(txn.Amount)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(100)))
}

func TestPurchaseWithoutPaymentCreatesNoTransaction(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	customer := createCustomer(t, testCtx, testCtx.TestUserJWT, "Binod", "556")

	updated, code := addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{
		Amount: decimal.NewFromInt(75),
	})
	assert.Equal(t, http.StatusCreated, code)
	assert.Len(t, updated.Purchases, 1)
	assert.True(t, updated.Purchases[0].Paid.IsZero())
	// Description falls back to the default when blank
	assert.Equal(t, "New Purchase", updated.Purchases[0].Description)

	transactions := listTransactions(t, testCtx, testCtx.TestUserJWT, "")
	assert.Len(t, transactions, 0)
}

func TestPurchaseValidation(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	customer := createCustomer(t, testCtx, testCtx.TestUserJWT, "Chitra", "557")

	// Missing amount
	_, code := addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{})
	assert.Equal(t, http.StatusBadRequest, code)

	// Zero amount
	_, code = addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{
		Amount: decimal.Zero,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	// Initial payment above the purchase amount
	_, code = addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{
		Amount: decimal.NewFromInt(10),
		Paid:   decimal.NewFromInt(20),
	})
	assert.Equal(t, http.StatusBadRequest, code)

	// Unknown customer
	_, code = addPurchase(t, testCtx, testCtx.TestUserJWT, uuid.New().String(), models.CreatePurchaseRequest{
		Amount: decimal.NewFromInt(10),
	})
	assert.Equal(t, http.StatusNotFound, code)

	// Nothing was written for any of the rejected requests
	transactions := listTransactions(t, testCtx, testCtx.TestUserJWT, "")
	assert.Len(t, transactions, 0)
}

// A sequence of payments with increasing absolute totals generates one delta
// transaction per step, and the deltas sum to the final paid total.
func TestPaymentSequenceAccumulatesWithoutDoubleCounting(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	customer := createCustomer(t, testCtx, testCtx.TestUserJWT, "Divya", "558")

	updated, code := addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{
		Amount: decimal.NewFromInt(100),
	})
	assert.Equal(t, http.StatusCreated, code)
	purchaseID := updated.Purchases[0].ID

	totals := []int64{10, 25, 60, 100}
	for _, total := range totals {
		updated, code = updatePayment(t, testCtx, testCtx.TestUserJWT, customer.ID, purchaseID, decimal.NewFromInt(total))
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, updated.Purchases[0].Paid.Equal(decimal.NewFromInt(total)))
	}

	transactions := listTransactions(t, testCtx, testCtx.TestUserJWT, "")
	assert.Len(t, transactions, len(totals))

	sum := decimal.Zero
	for _, txn := range transactions {
		assert.Equal(t, models.TransactionTypeIncome, txn.Type)
		assert.Equal(t, models.CategoryDebtRecovery, txn.Category)
		sum = sum.Add(txn.Amount)
	}
	assert.True(t, sum.Equal(decimal.NewFromInt(100)), "deltas should sum to the final paid total, got %s", sum)
}

// Retrying a payment with the same absolute total is a ledger no-op.
func TestPaymentRetryIsIdempotent(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	customer := createCustomer(t, testCtx, testCtx.TestUserJWT, "Esha", "559")

	updated, code := addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{
		Amount: decimal.NewFromInt(80),
	})
	assert.Equal(t, http.StatusCreated, code)
	purchaseID := updated.Purchases[0].ID

	for i := 0; i < 2; i++ {
		updated, code = updatePayment(t, testCtx, testCtx.TestUserJWT, customer.ID, purchaseID, decimal.NewFromInt(30))
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, updated.Purchases[0].Paid.Equal(decimal.NewFromInt(30)))
	}

	// The retry computed delta = 0 and posted nothing
	transactions := listTransactions(t, testCtx, testCtx.TestUserJWT, "")
	assert.Len(t, transactions, 1)
	assert.True(t, transactions[0].Amount.Equal(decimal.NewFromInt(30)))
}

func TestPaymentBoundsRejected(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	customer := createCustomer(t, testCtx, testCtx.TestUserJWT, "Farhan", "560")

	updated, code := addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{
		Amount: decimal.NewFromInt(50),
		Paid:   decimal.NewFromInt(20),
	})
	assert.Equal(t, http.StatusCreated, code)
	purchaseID := updated.Purchases[0].ID

	// Lowering the paid total is rejected; corrections do not reverse-post
	_, code = updatePayment(t, testCtx, testCtx.TestUserJWT, customer.ID, purchaseID, decimal.NewFromInt(10))
	assert.Equal(t, http.StatusBadRequest, code)

	// Paying past the purchase amount is rejected
	_, code = updatePayment(t, testCtx, testCtx.TestUserJWT, customer.ID, purchaseID, decimal.NewFromInt(60))
	assert.Equal(t, http.StatusBadRequest, code)

	// The purchase and the ledger are untouched by the rejected calls
	transactions := listTransactions(t, testCtx, testCtx.TestUserJWT, "")
	assert.Len(t, transactions, 1)

	purchase, err := testCtx.Repository.GetPurchase(context.Background(), purchaseID, customer.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, purchase) {
		assert.True(t, purchase.Paid.Equal(decimal.NewFromInt(20)))
	}
}

// Forcing the income insert to fail must roll back the purchase write too:
// no partial state is observable afterwards.
func TestSyncAtomicityUnderInjectedFailure(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)
	ctx := context.Background()

	customer := createCustomer(t, testCtx, testCtx.TestUserJWT, "Gita", "561")

	updated, code := addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{
		Amount: decimal.NewFromInt(100),
		Paid:   decimal.NewFromInt(10),
	})
	assert.Equal(t, http.StatusCreated, code)
	purchaseID := updated.Purchases[0].ID

	// An income row with an invalid type violates the transactions check
	// constraint, after the purchase row has already been updated
	badDescription := "forced failure"
	badIncome := &models.Transaction{
		UserID:      testCtx.TestUserID,
		Type:        "transfer",
		Category:    models.CategoryDebtRecovery,
		Description: &badDescription,
		Date:        time.Now().UTC(),
	}

	_, _, err := testCtx.Repository.ApplyPayment(ctx, purchaseID, customer.ID, decimal.NewFromInt(70), badIncome)
	assert.Error(t, err)

	// The paid value rolled back to its pre-call state
	purchase, err := testCtx.Repository.GetPurchase(ctx, purchaseID, customer.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, purchase) {
		assert.True(t, purchase.Paid.Equal(decimal.NewFromInt(10)),
			"paid should have rolled back to 10, got %s", purchase.Paid)
	}

	// Same failure injected into purchase creation leaves no orphaned purchase
	orphanID := uuid.New().String()
	badPurchase := &models.Purchase{
		ID:         orphanID,
		CustomerID: customer.ID,
		Amount:     decimal.NewFromInt(40),
		Paid:       decimal.NewFromInt(40),
		Date:       time.Now().UTC(),
	}
	err = testCtx.Repository.CreatePurchase(ctx, badPurchase, badIncome)
	assert.Error(t, err)

	orphan, err := testCtx.Repository.GetPurchase(ctx, orphanID, customer.ID)
	assert.NoError(t, err)
	assert.Nil(t, orphan, "purchase insert should have rolled back with the failed income insert")
}

func TestPurchaseOwnershipIsolation(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	customer := createCustomer(t, testCtx, testCtx.TestUserJWT, "Hema", "562")

	updated, code := addPurchase(t, testCtx, testCtx.TestUserJWT, customer.ID, models.CreatePurchaseRequest{
		Amount: decimal.NewFromInt(100),
	})
	assert.Equal(t, http.StatusCreated, code)
	purchaseID := updated.Purchases[0].ID

	_, otherToken := testutils.CreateUser(t, testCtx.Repository, string(testCtx.JWTSecret), "intruder")

	// Another user cannot add purchases to or pay against this customer
	_, code = addPurchase(t, testCtx, otherToken, customer.ID, models.CreatePurchaseRequest{
		Amount: decimal.NewFromInt(10),
	})
	assert.Equal(t, http.StatusNotFound, code)

	_, code = updatePayment(t, testCtx, otherToken, customer.ID, purchaseID, decimal.NewFromInt(100))
	assert.Equal(t, http.StatusNotFound, code)
}
