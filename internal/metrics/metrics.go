// Package metrics exposes the bot's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
	OutcomeNotFound  = "not_found"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snippetbot",
		Name:      "commands_total",
		Help:      "Commands handled, by command name and outcome.",
	}, []string{"command", "outcome"})

	BroadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snippetbot",
		Name:      "broadcast_deliveries_total",
		Help:      "Broadcast sends, by result (delivered or failed).",
	}, []string{"result"})

	UsersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snippetbot",
		Name:      "users_registered_total",
		Help:      "User records created on first contact.",
	})

	RegistrationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snippetbot",
		Name:      "user_registration_failures_total",
		Help:      "First-contact registrations that failed in the store.",
	})

	SnippetsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snippetbot",
		Name:      "snippets_opened_total",
		Help:      "Successful snippet retrievals through a deep link.",
	})

	UpdatesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snippetbot",
		Name:      "updates_received_total",
		Help:      "Inbound messages, by transport.",
	}, []string{"transport"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
