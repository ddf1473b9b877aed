package service

import "errors"

// ValidationError marks a request that failed a business validation rule.
// The API boundary maps it to a 400 response carrying the message verbatim.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validation(msg string) error {
	return &ValidationError{msg: msg}
}

// NotFoundError covers both an absent entity and an entity owned by another
// user, so callers cannot probe for existence. Mapped to 404.
type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string {
	return e.msg
}

var (
	ErrUserNotFound        = &NotFoundError{msg: "User not found"}
	ErrCustomerNotFound    = &NotFoundError{msg: "Customer not found"}
	ErrPurchaseNotFound    = &NotFoundError{msg: "Purchase not found"}
	ErrTransactionNotFound = &NotFoundError{msg: "Transaction not found"}
)

var (
	// ErrUsernameTaken is returned on signup with an existing username (400)
	ErrUsernameTaken = errors.New("Username already exists")

	// ErrInvalidCredentials is returned on login failure. The same error is
	// used for an unknown username and a wrong password so the response does
	// not reveal which one was wrong.
	ErrInvalidCredentials = errors.New("Invalid username or password")
)
