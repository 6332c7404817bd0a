// Package metrics exposes Prometheus counters for chatbot replies.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Replies counts replies by the rule that produced them.
type Replies struct {
	total *prometheus.CounterVec
}

// NewReplies registers the reply counter on reg.
func NewReplies(reg prometheus.Registerer) (*Replies, error) {
	if reg == nil {
		return nil, errors.New("metrics: registerer must not be nil")
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatbot",
		Name:      "replies_total",
		Help:      "Replies sent, partitioned by the rule that matched.",
	}, []string{"rule"})
	if err := reg.Register(total); err != nil {
		return nil, err
	}
	return &Replies{total: total}, nil
}

// ObserveReply increments the counter for rule.
func (r *Replies) ObserveReply(rule string) {
	r.total.WithLabelValues(rule).Inc()
}
