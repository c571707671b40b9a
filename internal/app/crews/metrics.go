package crews

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the crew service counters.
type Metrics struct {
	inviteResolutions *prometheus.CounterVec
	joins             *prometheus.CounterVec
	crewsCreated      *prometheus.CounterVec
	codeFallbacks     prometheus.Counter
	legacyHeals       prometheus.Counter
}

// NewMetrics registers the crew service counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		inviteResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crewplanner",
			Subsystem: "invites",
			Name:      "resolutions_total",
			Help:      "Invite resolutions by path (handle, registry, legacy) and result.",
		}, []string{"path", "result"}),
		joins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crewplanner",
			Subsystem: "crews",
			Name:      "joins_total",
			Help:      "Membership join attempts by result.",
		}, []string{"result"}),
		crewsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crewplanner",
			Subsystem: "crews",
			Name:      "created_total",
			Help:      "Crew bootstrap attempts by result.",
		}, []string{"result"}),
		codeFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "crewplanner",
			Subsystem: "invites",
			Name:      "code_fallbacks_total",
			Help:      "Join codes produced by the time-derived fallback after repeated collisions.",
		}),
		legacyHeals: f.NewCounter(prometheus.CounterOpts{
			Namespace: "crewplanner",
			Subsystem: "invites",
			Name:      "legacy_heals_total",
			Help:      "Registry rows inserted on the fly for legacy crew join codes.",
		}),
	}
}
