package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessReporter is implemented by the invalidation consumer: it is ready
// once the group has assigned it partitions of the update topic.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status     string  `json:"status"`
			Partitions []int32 `json:"partitions,omitempty"`
		}
		out := resp{Status: "ready"}
		status := http.StatusOK
		if rr != nil {
			ready, parts := rr.Readiness()
			if ready {
				out.Partitions = parts
			} else {
				out.Status = "not_ready"
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(out)
	}
}
