package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttemptsTotal counts login attempts by outcome.
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_service_login_attempts_total",
		Help: "The total number of login attempts",
	}, []string{"status"})

	// RegistrationAttemptsTotal counts registration attempts by outcome.
	RegistrationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_service_registration_attempts_total",
		Help: "The total number of registration attempts",
	}, []string{"status"})

	// ActiveSessionsGauge tracks live sessions known to this instance.
	ActiveSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_service_active_sessions",
		Help: "The number of active sessions",
	})

	// OnlineUsersGauge tracks users currently marked online.
	OnlineUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_service_online_users",
		Help: "The number of users currently online",
	})

	// MessagesStoredTotal counts durably persisted messages.
	MessagesStoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_service_messages_stored_total",
		Help: "The total number of messages written to storage",
	})

	// MessagesDeliveredTotal counts deliveries to local connections.
	MessagesDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_service_messages_delivered_total",
		Help: "The total number of messages delivered to local connections",
	})

	// MessagesDroppedTotal counts deliveries dropped by outcome.
	MessagesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_service_messages_dropped_total",
		Help: "The total number of messages dropped before delivery",
	}, []string{"reason"})

	// DecryptionFailuresTotal counts payloads that failed to open.
	DecryptionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_service_decryption_failures_total",
		Help: "The total number of decryption failures",
	})

	// KeyRotationsTotal counts encryption key rotations.
	KeyRotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_service_key_rotations_total",
		Help: "The total number of encryption key rotations",
	})

	// BusPublishTotal counts bus publish attempts by outcome.
	BusPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_service_bus_publish_total",
		Help: "The total number of bus publish attempts",
	}, []string{"status"})

	// SessionsSweptTotal counts expired sessions removed by the sweeper.
	SessionsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_service_sessions_swept_total",
		Help: "The total number of expired sessions removed",
	})

	// ConnectionsGauge tracks open client connections by transport.
	ConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chat_service_connections",
		Help: "The number of open client connections",
	}, []string{"transport"})
)
