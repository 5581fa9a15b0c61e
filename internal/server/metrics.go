package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sevasetu_turns_total",
	Help: "Chat turns processed, labelled by outcome.",
}, []string{"outcome"})

func recordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}
