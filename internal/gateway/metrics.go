package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alertmesh_gateway_requests_total",
		Help: "Inbound alert submissions by outcome.",
	}, []string{"outcome"})

	publishesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alertmesh_gateway_publishes_total",
		Help: "Alerts handed to the broker.",
	})
)
