package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gaugeActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "expense_tracker",
		Subsystem: "server",
		Name:      "active_sessions",
	},
)
