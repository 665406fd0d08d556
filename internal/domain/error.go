package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidAction   = errors.New("invalid action")

	// Plans
	ErrInvalidPlan        = errors.New("invalid plan selected")
	ErrPlanNotPurchasable = errors.New("plan requires custom pricing; contact sales")

	// Trust: signatures and credentials
	ErrMissingSignature         = errors.New("missing signature")
	ErrInvalidSignature         = errors.New("invalid payment signature")
	ErrGatewayNotConfigured     = errors.New("payment gateway not configured")
	ErrCredentialsNotConfigured = errors.New("gateway credentials not configured")
	ErrForbidden                = errors.New("user is not allowed to manage this tenant")

	// Integrity
	ErrAmountMismatch  = errors.New("amount mismatch detected")
	ErrPaymentMismatch = errors.New("payment does not belong to this request")

	// Upstream
	ErrGatewayUnavailable = errors.New("failed to create payment order")

	// State
	ErrPaymentsDisabled   = errors.New("online payments are not enabled for this tenant")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrPaymentNotPending  = errors.New("payment is not pending")
	ErrNotVerified        = errors.New("payment has no verified gateway confirmation")
	ErrMalformedPayload   = errors.New("invalid payload")
	ErrUnsupportedPayment = errors.New("unsupported payment type")

	// Storage
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
