package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelfledger",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "JSON-RPC requests by method.",
	}, []string{"method"})

	engineErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelfledger",
		Subsystem: "rpc",
		Name:      "engine_errors_total",
		Help:      "Engine failures surfaced over RPC by taxonomy code.",
	}, []string{"code"})
)
