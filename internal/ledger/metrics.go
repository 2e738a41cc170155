package ledger

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vanshika/supplytrace/internal/domain"
)

const (
	outcomeCommitted  = "committed"
	outcomeDuplicate  = "duplicate"
	outcomeNotFound   = "not_found"
	outcomeValidation = "validation"
	outcomeReference  = "reference"
	outcomeError      = "error"
)

// Metrics records transaction throughput and latency.
type Metrics struct {
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewMetrics registers the ledger collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supplytrace",
			Name:      "transactions_total",
			Help:      "Submitted transactions by class and outcome.",
		}, []string{"class", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supplytrace",
			Name:      "transaction_duration_seconds",
			Help:      "Time spent executing a transaction, including waiting for the write lock.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class"}),
	}
	for _, c := range []prometheus.Collector{m.transactions, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(class string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(class, outcome(err)).Inc()
	m.duration.WithLabelValues(class).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeCommitted
	case errors.Is(err, domain.ErrDuplicateAsset):
		return outcomeDuplicate
	case errors.Is(err, domain.ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, domain.ErrValidation):
		return outcomeValidation
	case errors.Is(err, domain.ErrReference):
		return outcomeReference
	default:
		return outcomeError
	}
}
