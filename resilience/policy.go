package resilience

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Policy configures the resilience wrapper for one external target. Each
// outbound integration owns exactly one policy; policies are immutable after
// load for the process lifetime.
type Policy struct {
	Target  string `validate:"required"`
	BaseURL string `validate:"required"`

	// Per-attempt call timeout.
	Timeout time.Duration `validate:"gt=0"`

	// Retry: transient failures only, exponential backoff from base capped
	// at max.
	RetryCount     int           `validate:"gte=0"`
	RetryBaseDelay time.Duration `validate:"gt=0"`
	RetryMaxDelay  time.Duration `validate:"gt=0"`

	// Circuit breaker: failure ratio over a rolling sampling window, gated
	// by a minimum call count before the breaker may trip.
	FailureThreshold  float64       `validate:"gt=0,lte=1"`
	SamplingWindow    time.Duration `validate:"gt=0"`
	MinimumThroughput int           `validate:"gt=0"`
	BreakDuration     time.Duration `validate:"gt=0"`
}

var policyValidator = validator.New()

func (p Policy) Validate() error {
	if err := policyValidator.Struct(p); err != nil {
		return fmt.Errorf("invalid resilience policy for %q: %w", p.Target, err)
	}
	if p.RetryMaxDelay < p.RetryBaseDelay {
		return fmt.Errorf("invalid resilience policy for %q: max delay below base delay", p.Target)
	}
	return nil
}

// DefaultPolicy carries production defaults; env overrides are applied on
// top by LoadPolicyFromEnv.
func DefaultPolicy(target, baseURL string) Policy {
	return Policy{
		Target:            target,
		BaseURL:           baseURL,
		Timeout:           10 * time.Second,
		RetryCount:        3,
		RetryBaseDelay:    200 * time.Millisecond,
		RetryMaxDelay:     5 * time.Second,
		FailureThreshold:  0.5,
		SamplingWindow:    30 * time.Second,
		MinimumThroughput: 20,
		BreakDuration:     30 * time.Second,
	}
}

// LoadPolicyFromEnv builds the policy for a target from env vars prefixed
// with RESILIENCE_<TARGET>_, e.g. RESILIENCE_PRICING_TIMEOUT_MS.
// Missing vars keep the defaults.
func LoadPolicyFromEnv(target string) (Policy, error) {
	prefix := "RESILIENCE_" + strings.ToUpper(strings.ReplaceAll(target, "-", "_")) + "_"

	p := DefaultPolicy(target, strings.TrimSpace(os.Getenv(prefix+"BASE_URL")))

	p.Timeout = msFromEnv(prefix+"TIMEOUT_MS", p.Timeout)
	p.RetryCount = intFromEnv(prefix+"RETRY_COUNT", p.RetryCount)
	p.RetryBaseDelay = msFromEnv(prefix+"RETRY_BASE_DELAY_MS", p.RetryBaseDelay)
	p.RetryMaxDelay = msFromEnv(prefix+"RETRY_MAX_DELAY_MS", p.RetryMaxDelay)
	p.FailureThreshold = floatFromEnv(prefix+"FAILURE_THRESHOLD", p.FailureThreshold)
	p.SamplingWindow = msFromEnv(prefix+"SAMPLING_WINDOW_MS", p.SamplingWindow)
	p.MinimumThroughput = intFromEnv(prefix+"MINIMUM_THROUGHPUT", p.MinimumThroughput)
	p.BreakDuration = msFromEnv(prefix+"BREAK_DURATION_MS", p.BreakDuration)

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func msFromEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
