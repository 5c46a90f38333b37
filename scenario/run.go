package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pthm-cable/ecosys/sim"
)

// Run advances s by dt while its time is at most t and returns the state
// before and after.
func Run(s *sim.Simulator, t, dt float64) (sim.BatchDoc, error) {
	return RunContext(context.Background(), s, t, dt, 0)
}

// RunContext is Run with cancellation and pacing. A positive pace runs
// that many simulated seconds per wall-clock second; zero runs flat out.
// On cancellation the state reached so far is returned with ctx's error.
func RunContext(ctx context.Context, s *sim.Simulator, t, dt, pace float64) (sim.BatchDoc, error) {
	if dt <= 0 {
		return sim.BatchDoc{}, fmt.Errorf("%w: time step %g must be positive", ErrInvalidScenario, dt)
	}
	doc := sim.BatchDoc{In: s.Dump()}

	var tick <-chan time.Time
	if pace > 0 {
		ticker := time.NewTicker(time.Duration(dt / pace * float64(time.Second)))
		defer ticker.Stop()
		tick = ticker.C
	}

	for s.Time() <= t {
		if tick != nil {
			select {
			case <-ctx.Done():
				doc.Out = s.Dump()
				return doc, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			doc.Out = s.Dump()
			return doc, err
		}
		s.Advance(dt)
	}
	doc.Out = s.Dump()
	return doc, nil
}

// WriteBatch writes the batch document as a single JSON line.
func WriteBatch(w io.Writer, doc sim.BatchDoc) error {
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("writing batch output: %w", err)
	}
	return nil
}
