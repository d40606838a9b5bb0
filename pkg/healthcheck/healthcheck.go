package healthcheck

// HealthcheckFunc is a function that returns a status message, and whether
// the check is healthy or not (false). Healthchecks must not block; report on
// downstream dependencies in a watchdog style, not by making a roundtrip.
type HealthcheckFunc func() (string, HealthyStatus)

type HealthyStatus bool

const (
	Healthy   = HealthyStatus(true)
	Unhealthy = HealthyStatus(false)
)

// HealthCheckProvider is implemented by components that can report on their
// own health.
type HealthCheckProvider interface {
	HealthChecks() []HealthcheckFunc
}

// MaybeAppendHealthChecks appends the health checks of maybeProvider, if it
// provides any.
func MaybeAppendHealthChecks(healthChecks []HealthcheckFunc, maybeProvider interface{}) []HealthcheckFunc {
	if hcp, ok := maybeProvider.(HealthCheckProvider); ok {
		healthChecks = append(healthChecks, hcp.HealthChecks()...)
	}
	return healthChecks
}
