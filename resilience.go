package volley

import (
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// ResilienceConfig wraps the Network Dispatcher's Transport.Perform call
// with an optional failsafe-go circuit breaker. This sits outside the
// per-request RetryPolicy (§4.3/retrypolicy.go): RetryPolicy decides whether
// *this request* tries again; the circuit breaker decides whether the
// dispatcher should stop sending *any* request to a transport that is
// failing systemically. Disabled by default.
type ResilienceConfig struct {
	// CircuitBreaker configures circuit breaker behavior using failsafe-go.
	// If nil, the circuit breaker is disabled.
	// Example:
	//   circuitbreaker.Builder[*volley.NetworkResponse]().
	//     HandleIf(func(r *volley.NetworkResponse, err error) bool {
	//       return err != nil || (r != nil && r.StatusCode >= 500)
	//     }).
	//     WithFailureThreshold(5).
	//     WithSuccessThreshold(2).
	//     WithDelay(60*time.Second).
	//     Build()
	CircuitBreaker circuitbreaker.CircuitBreaker[*NetworkResponse]
}

// CircuitBreakerBuilder creates a pre-configured circuit breaker builder for
// network dispatch. You can further customize the builder before calling
// Build().
//
// Default configuration:
//   - Opens on: transport errors and 5xx status codes
//   - Failure threshold: 5 consecutive failures
//   - Success threshold: 2 consecutive successes (in half-open state)
//   - Delay: 60 seconds before entering half-open state
func CircuitBreakerBuilder() circuitbreaker.Builder[*NetworkResponse] {
	return circuitbreaker.NewBuilder[*NetworkResponse]().
		HandleIf(func(r *NetworkResponse, err error) bool {
			if err != nil {
				return true
			}
			if r != nil && r.StatusCode >= 500 {
				return true
			}
			return false
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2)
}

// withResilience runs fn through the configured circuit breaker, or calls
// it directly if resilience is nil or has no circuit breaker configured.
func withResilience(resilience *ResilienceConfig, fn func() (*NetworkResponse, error)) (*NetworkResponse, error) {
	if resilience == nil || resilience.CircuitBreaker == nil {
		return fn()
	}
	return failsafe.With[*NetworkResponse](resilience.CircuitBreaker).Get(fn)
}
