package monitor

import "encoding/json"

// Status is the freshness of the stats stream.
type Status int

const (
	Healthy Status = iota
	Stalled
)

func (s Status) String() string {
	if s == Stalled {
		return "stalled"
	}
	return "healthy"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// streamHealth counts consecutive polls that produced no new stats sample.
// It is owned by the poll loop.
type streamHealth struct {
	generation  uint64
	samples     int
	misses      int
	lastEmitted Status
}

// observe records the sample count seen at a poll and returns the resulting
// status and whether it changed since the last emission.
func (h *streamHealth) observe(generation uint64, samples, threshold int) (Status, bool) {
	if generation != h.generation {
		h.generation = generation
		h.samples = samples
		h.misses = 0
	} else if samples == h.samples {
		h.misses++
	} else {
		h.samples = samples
		h.misses = 0
	}

	status := Healthy
	if threshold > 0 && h.misses >= threshold {
		status = Stalled
	}
	changed := status != h.lastEmitted
	h.lastEmitted = status
	return status, changed
}

// reset is called while no session is running.
func (h *streamHealth) reset() (Status, bool) {
	changed := h.lastEmitted != Healthy
	*h = streamHealth{}
	return Healthy, changed
}
