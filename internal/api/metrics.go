package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loadxpress_logins_total",
		Help: "Completed sign-ins by method.",
	}, []string{"method"})

	ordersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loadxpress_orders_total",
		Help: "Placed orders by outcome.",
	}, []string{"status"})
)
