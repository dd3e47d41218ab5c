package email

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts send attempts by backend and outcome. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	sends *prometheus.CounterVec
}

// NewMetrics registers the mailer's counters with reg. Registering twice
// with the same Registerer returns an error.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	sends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewhub",
		Subsystem: "mail",
		Name:      "send_total",
		Help:      "Email send attempts, by backend and result.",
	}, []string{"backend", "result"})

	if err := reg.Register(sends); err != nil {
		return nil, err
	}

	return &Metrics{sends: sends}, nil
}

func (m *Metrics) observe(b Backend, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.sends.WithLabelValues(b.String(), result).Inc()
}
