package sim

import (
	"fmt"
	"time"
)

// Report summarizes one completed simulation run.
type Report struct {
	RunID     string        `json:"run_id"`
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Producers        int `json:"producers"`
	Consumers        int `json:"consumers"`
	ItemsPerProducer int `json:"items_per_producer"`
	Capacity         int `json:"capacity"`

	Produced    uint64 `json:"produced"`
	Consumed    uint64 `json:"consumed"`
	EndOfStream uint64 `json:"end_of_stream"`
	Mismatches  uint64 `json:"mismatches"`

	// PerConsumer holds the item count each consumer delivered,
	// indexed by consumer number.
	PerConsumer []uint64 `json:"per_consumer"`
}

// Check verifies the delivery invariants the exchange promises:
// every produced item consumed exactly once, one end-of-stream per
// consumer, no payload mismatches. Returns the first violation.
func (r *Report) Check() error {
	if want := uint64(r.Producers) * uint64(r.ItemsPerProducer); r.Produced != want {
		return fmt.Errorf("run %s: produced %d of %d items", r.RunID, r.Produced, want)
	}
	if r.Consumed != r.Produced {
		return fmt.Errorf("run %s: consumed %d items, produced %d", r.RunID, r.Consumed, r.Produced)
	}
	if r.EndOfStream != uint64(r.Consumers) {
		return fmt.Errorf("run %s: %d end-of-stream deliveries for %d consumers", r.RunID, r.EndOfStream, r.Consumers)
	}
	if r.Mismatches > 0 {
		return fmt.Errorf("run %s: %d payload mismatches", r.RunID, r.Mismatches)
	}
	var tallied uint64
	for _, n := range r.PerConsumer {
		tallied += n
	}
	if tallied != r.Consumed {
		return fmt.Errorf("run %s: per-consumer tallies sum to %d, consumed %d", r.RunID, tallied, r.Consumed)
	}
	return nil
}
