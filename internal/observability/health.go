package observability

import (
	"context"
	"encoding/json"
	"net/http"
)

// ReadyProbe is one named readiness condition: the object store is
// reachable, the scheduler has a source client, and so on. The name is
// surfaced in the /readyz response when the probe fails.
type ReadyProbe struct {
	Name  string
	Probe func(ctx context.Context) error
}

// probeReport is the /healthz and /readyz response body.
type probeReport struct {
	Status string `json:"status"`
	Failed string `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// HealthHandler serves liveness: the process is up and serving HTTP,
// nothing more. Always 200.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeProbeReport(rw, http.StatusOK, probeReport{Status: "ok"})
	})
}

// ReadyHandler serves readiness. Probes run in order; the first failure
// produces a 503 naming the failing subsystem. With no probes the daemon
// is unconditionally ready.
func ReadyHandler(probes ...ReadyProbe) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, p := range probes {
			if p.Probe == nil {
				continue
			}

			err := p.Probe(hr.Context())
			if err != nil {
				writeProbeReport(rw, http.StatusServiceUnavailable, probeReport{
					Status: "unavailable",
					Failed: p.Name,
					Reason: err.Error(),
				})

				return
			}
		}

		writeProbeReport(rw, http.StatusOK, probeReport{Status: "ok"})
	})
}

func writeProbeReport(rw http.ResponseWriter, code int, report probeReport) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	encErr := json.NewEncoder(rw).Encode(report)
	if encErr != nil {
		return
	}
}
