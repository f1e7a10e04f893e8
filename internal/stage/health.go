package stage

// Health summarizes whether a stage's collaborators are reachable.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Status returns "ready" or the failure detail.
func (h Health) Status() string {
	if h.Ready {
		return "ready"
	}
	if h.Detail == "" {
		return "unavailable"
	}
	return h.Detail
}
