package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Options configures the HTTP adapter. CallbackBaseURL is the orders
// resource root on this service; the per-order callback URL sent to the PG
// is <CallbackBaseURL>/{orderId}/callback.
type Options struct {
	BaseURL                 string
	CallbackBaseURL         string
	RequestTimeout          time.Duration
	StatusRetryMax          int
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
}

// HTTPClient is the resty-based adapter for the PG port. Three independent
// policies apply: a fixed per-request timeout on every call, a circuit
// breaker around every call, and bounded exponential retry on the
// status-check paths only. The online request path never retries so
// user-facing latency stays bounded by the timeout.
type HTTPClient struct {
	http            *resty.Client
	breaker         *gobreaker.CircuitBreaker
	callbackBaseURL string
	statusRetryMax  int
}

// NewHTTPClient creates an adapter for the PG at opts.BaseURL.
func NewHTTPClient(opts Options) *HTTPClient {
	threshold := uint32(opts.BreakerFailureThreshold)
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "pg",
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &HTTPClient{
		http: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(opts.RequestTimeout).
			SetHeader("Content-Type", "application/json"),
		breaker:         cb,
		callbackBaseURL: strings.TrimRight(opts.CallbackBaseURL, "/"),
		statusRetryMax:  opts.StatusRetryMax,
	}
}

type requestBody struct {
	OrderID     string `json:"orderId"`
	CardType    string `json:"cardType"`
	CardNo      string `json:"cardNo"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callbackUrl"`
}

type requestOK struct {
	TransactionKey string `json:"transactionKey"`
}

type requestErr struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type statusResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type transactionResponse struct {
	TransactionKey string `json:"transactionKey"`
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
}

// RequestPayment authorizes a payment. Failures come back as a
// RequestResult value; the returned error is reserved for context
// cancellation and programming errors.
func (c *HTTPClient) RequestPayment(ctx context.Context, cmd PaymentCommand) (*RequestResult, error) {
	cardNo, err := NormalizeCardNo(cmd.CardNo)
	if err != nil {
		return &RequestResult{
			ErrorCode: "INVALID_CARD",
			Message:   "card number failed validation",
		}, nil
	}

	body := requestBody{
		OrderID:     PadOrderID(cmd.OrderID),
		CardType:    cmd.CardType,
		CardNo:      cardNo,
		Amount:      cmd.Amount,
		CallbackURL: fmt.Sprintf("%s/%d/callback", c.callbackBaseURL, cmd.OrderID),
	}

	out, err := c.breaker.Execute(func() (any, error) {
		var ok requestOK
		var fail requestErr
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("X-USER-ID", cmd.ExternalUserID).
			SetBody(body).
			SetResult(&ok).
			SetError(&fail).
			Post("/payments")
		if err != nil {
			return nil, err
		}
		switch {
		case resp.IsSuccess():
			return &RequestResult{Success: true, TransactionKey: ok.TransactionKey}, nil
		case resp.StatusCode() >= 500:
			// 5xx counts against the breaker
			return nil, fmt.Errorf("pg returned %d: %s", resp.StatusCode(), fail.Message)
		default:
			// 4xx is a definitive PG answer, not a breaker failure
			return &RequestResult{
				ErrorCode: fail.ErrorCode,
				Message:   fail.Message,
				Retryable: fail.Retryable,
			}, nil
		}
	})
	if err != nil {
		return c.failureResult(err), nil
	}
	return out.(*RequestResult), nil
}

// failureResult maps transport and breaker errors into a RequestResult the
// orchestrator can classify.
func (c *HTTPClient) failureResult(err error) *RequestResult {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &RequestResult{ErrorCode: CodeCircuitOpen, Message: "circuit breaker is open", Retryable: true}
	case isTimeout(err):
		return &RequestResult{ErrorCode: CodeTimeout, Message: err.Error(), Timeout: true, Retryable: true}
	default:
		return &RequestResult{ErrorCode: CodeUnreachable, Message: err.Error(), Retryable: true}
	}
}

// GetStatusByOrder looks up the ledger status for an order. Retries with
// bounded exponential backoff; a 404 is definitive and returns ErrNoRecord
// without retrying.
func (c *HTTPClient) GetStatusByOrder(ctx context.Context, externalUserID, paddedOrderID string) (Status, error) {
	var status Status
	op := func() error {
		// 404 is a definitive ledger answer; it must not count against
		// the breaker and must not be retried.
		noRecord := false
		out, err := c.breaker.Execute(func() (any, error) {
			var sr statusResponse
			resp, err := c.http.R().
				SetContext(ctx).
				SetHeader("X-USER-ID", externalUserID).
				SetQueryParam("orderId", paddedOrderID).
				SetResult(&sr).
				Get("/payments")
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() == 404 {
				noRecord = true
				return Status(""), nil
			}
			if !resp.IsSuccess() {
				return nil, fmt.Errorf("pg status lookup returned %d", resp.StatusCode())
			}
			return Status(sr.Status), nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%s: %w", CodeCircuitOpen, err))
			}
			return err
		}
		if noRecord {
			return backoff.Permanent(ErrNoRecord)
		}
		status = out.(Status)
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.statusRetryMax)), ctx))
	if err != nil {
		return "", err
	}
	return status, nil
}

// GetStatusByTransaction fetches the detailed ledger record for one
// transaction. Same retry policy as GetStatusByOrder.
func (c *HTTPClient) GetStatusByTransaction(ctx context.Context, externalUserID, transactionKey string) (*TransactionDetail, error) {
	var detail *TransactionDetail
	op := func() error {
		noRecord := false
		out, err := c.breaker.Execute(func() (any, error) {
			var tr transactionResponse
			resp, err := c.http.R().
				SetContext(ctx).
				SetHeader("X-USER-ID", externalUserID).
				SetResult(&tr).
				Get("/payments/" + transactionKey)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() == 404 {
				noRecord = true
				return (*TransactionDetail)(nil), nil
			}
			if !resp.IsSuccess() {
				return nil, fmt.Errorf("pg transaction lookup returned %d", resp.StatusCode())
			}
			return &TransactionDetail{
				TransactionKey: tr.TransactionKey,
				OrderID:        tr.OrderID,
				Status:         Status(tr.Status),
				Amount:         tr.Amount,
				Reason:         tr.Reason,
			}, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%s: %w", CodeCircuitOpen, err))
			}
			return err
		}
		if noRecord {
			return backoff.Permanent(ErrNoRecord)
		}
		detail = out.(*TransactionDetail)
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.statusRetryMax)), ctx))
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
