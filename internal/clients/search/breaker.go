package search

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

// Opens after 60% failures over at least 10 requests in a one minute
// window, then probes again after 30s with up to 3 requests.
func newBreaker(name string, log *logger.Logger, metrics *observability.Metrics) *gobreaker.CircuitBreaker[[]byte] {
	metrics.SetBreakerState(name, 0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				log.Warn("circuit breaker opening", "failures", counts.TotalFailures, "requests", counts.Requests)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.SetBreakerState(name, stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
