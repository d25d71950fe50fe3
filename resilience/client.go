package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/docgen_backend/utils"
	"github.com/sirupsen/logrus"
)

const auditBodyLimit = 512

// Request is one outbound call to an external target.
type Request struct {
	Action string
	Method string
	Path   string
	Body   []byte
}

type Response struct {
	StatusCode int
	Body       []byte
}

// Caller executes the raw call. Implementations carry no resilience logic of
// their own; swapping a mock for the HTTP caller must not change the
// wrapping.
type Caller interface {
	Call(ctx context.Context, req Request) (*Response, error)
}

// Client wraps one external target with timeout, retry, circuit breaker and
// audit logging, composed in that order. One client per target, sharing the
// target's single policy and breaker.
type Client struct {
	policy  Policy
	breaker *CircuitBreaker
	caller  Caller
	logger  *logrus.Logger

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(policy Policy, caller Caller, logger *logrus.Logger) *Client {
	return &Client{
		policy:  policy,
		breaker: NewCircuitBreaker(policy),
		caller:  caller,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDelay is base * 2^(attempt-1), capped at the policy max.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return c.policy.RetryBaseDelay
	}
	delay := c.policy.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.policy.RetryMaxDelay {
			return c.policy.RetryMaxDelay
		}
	}
	if delay > c.policy.RetryMaxDelay {
		return c.policy.RetryMaxDelay
	}
	return delay
}

// Do executes the request under the policy. Transient failures (timeout, 5xx,
// network) are retried with capped exponential backoff; a 4xx-class response
// returns InvalidRequestError at once and is never retried. An open breaker
// or exhausted retries yield DependencyUnavailableError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var lastReason string

	for attempt := 1; attempt <= c.policy.RetryCount+1; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.backoffDelay(attempt-1)); err != nil {
				return nil, err
			}
		}

		if err := c.breaker.Allow(); err != nil {
			c.audit(ctx, req, attempt, nil, 0, "circuit_open", err.Error())
			return nil, &utils.DependencyUnavailableError{Target: c.policy.Target, Reason: "circuit breaker open"}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
		started := time.Now()
		resp, err := c.caller.Call(callCtx, req)
		duration := time.Since(started)
		cancel()

		switch {
		case err != nil:
			// Timeout and network-level failures are transient.
			c.breaker.RecordFailure()
			lastReason = err.Error()
			c.audit(ctx, req, attempt, nil, duration, "transient_failure", lastReason)

		case resp.StatusCode >= 500:
			c.breaker.RecordFailure()
			lastReason = fmt.Sprintf("server error %d", resp.StatusCode)
			c.audit(ctx, req, attempt, resp, duration, "transient_failure", lastReason)

		case resp.StatusCode >= 400:
			// The request itself is invalid; the dependency is healthy.
			c.breaker.RecordSuccess()
			c.audit(ctx, req, attempt, resp, duration, "invalid_request", "")
			return nil, &utils.InvalidRequestError{
				Target:     c.policy.Target,
				StatusCode: resp.StatusCode,
				Body:       utils.TruncateString(string(resp.Body), auditBodyLimit),
			}

		default:
			c.breaker.RecordSuccess()
			c.audit(ctx, req, attempt, resp, duration, "success", "")
			return resp, nil
		}
	}

	return nil, &utils.DependencyUnavailableError{
		Target: c.policy.Target,
		Reason: fmt.Sprintf("retries exhausted after %d attempts: %s", c.policy.RetryCount+1, lastReason),
	}
}

// audit logs every attempt, including breaker short-circuits, with bounded
// request/response bodies.
func (c *Client) audit(ctx context.Context, req Request, attempt int, resp *Response, duration time.Duration, outcome, reason string) {
	if c.logger == nil {
		return
	}
	fields := logrus.Fields{
		"target":         c.policy.Target,
		"action":         req.Action,
		"attempt":        attempt,
		"outcome":        outcome,
		"duration_ms":    duration.Milliseconds(),
		"correlation_id": utils.CorrelationIdFromContextOrNew(ctx),
		"request_body":   utils.TruncateString(string(req.Body), auditBodyLimit),
	}
	if resp != nil {
		fields["status_code"] = resp.StatusCode
		fields["response_body"] = utils.TruncateString(string(resp.Body), auditBodyLimit)
	}
	if reason != "" {
		fields["reason"] = reason
	}

	entry := c.logger.WithFields(fields)
	if outcome == "success" {
		entry.Info("outbound call")
	} else {
		entry.Warn("outbound call")
	}
}
