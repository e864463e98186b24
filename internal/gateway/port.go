package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Status is a payment status as reported by the PG ledger.
type Status string

// Ledger statuses.
const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// ErrNoRecord is returned by status lookups when the PG ledger has no
// record of the order or transaction. A PENDING order with no ledger
// record stays PENDING; the system never guesses.
var ErrNoRecord = errors.New("pg has no record")

// Well-known adapter error codes.
const (
	CodeCircuitOpen = "CIRCUIT_BREAKER_OPEN"
	CodeTimeout     = "TIMEOUT"
	CodeUnreachable = "CONNECTION_ERROR"
)

// businessFailureCodes conclusively indicate the payment cannot succeed
// for this request regardless of retry. Matched by substring.
var businessFailureCodes = []string{
	"LIMIT_EXCEEDED",
	"INVALID_CARD",
	"CARD_ERROR",
	"INSUFFICIENT_FUNDS",
	"PAYMENT_FAILED",
}

// IsBusinessFailure classifies a PG error code. Everything that is not a
// business failure is an external-system failure: the order stays PENDING
// and reconciliation resolves it from the ledger.
func IsBusinessFailure(errorCode string) bool {
	for _, code := range businessFailureCodes {
		if strings.Contains(errorCode, code) {
			return true
		}
	}
	return false
}

// PadOrderID encodes an order ID for the PG wire format: left-zero-padded
// to at least six digits.
func PadOrderID(orderID int64) string {
	return fmt.Sprintf("%06d", orderID)
}

// PaymentCommand carries everything the PG needs to authorize a payment.
type PaymentCommand struct {
	OrderID        int64
	ExternalUserID string
	CardType       string
	CardNo         string
	Amount         int64
}

// RequestResult is the outcome of a payment request. A failed request is a
// value, not an error: the adapter folds timeouts, breaker trips, and PG
// rejections into ErrorCode so the orchestrator can classify them.
type RequestResult struct {
	Success        bool
	TransactionKey string
	ErrorCode      string
	Message        string
	Timeout        bool
	Retryable      bool
}

// TransactionDetail is the PG ledger record for a single transaction.
type TransactionDetail struct {
	TransactionKey string
	OrderID        string
	Status         Status
	Amount         int64
	Reason         string
}

// Client is the outbound port to the payment gateway.
type Client interface {
	RequestPayment(ctx context.Context, cmd PaymentCommand) (*RequestResult, error)
	GetStatusByOrder(ctx context.Context, externalUserID, paddedOrderID string) (Status, error)
	GetStatusByTransaction(ctx context.Context, externalUserID, transactionKey string) (*TransactionDetail, error)
}
