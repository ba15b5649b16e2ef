// Package stats accumulates the per-run counters reported in the end-of-run
// summary. Runs are single-threaded, so plain ints suffice.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Run holds monotonic counters for one pipeline invocation.
type Run struct {
	startedAt time.Time

	Input      int // documents read from the source window
	Annotated  int // documents the annotation service returned an annotation for
	Filtered   int // business-rule drops (no tags, no entities, title filter)
	Duplicates int // dropped by duplicate search (ours or the service's)
	Failed     int // batch or persist failures
	Persisted  int // records written, summed over destinations

	perDestination map[string]int
}

// NewRun starts the wall clock.
func NewRun() *Run {
	return &Run{
		startedAt:      time.Now(),
		perDestination: make(map[string]int),
	}
}

// AddPersisted counts one successful write to the named destination.
func (r *Run) AddPersisted(destination string) {
	r.Persisted++
	r.perDestination[destination]++
}

// PersistedTo returns the count for one destination.
func (r *Run) PersistedTo(destination string) int {
	return r.perDestination[destination]
}

// Elapsed returns the wall time since the run started.
func (r *Run) Elapsed() time.Duration {
	return time.Since(r.startedAt).Round(time.Second)
}

// Summary renders the human-readable end-of-run line.
func (r *Run) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "input=%d annotated=%d filtered=%d duplicates=%d failed=%d persisted=%d",
		r.Input, r.Annotated, r.Filtered, r.Duplicates, r.Failed, r.Persisted)

	names := make([]string, 0, len(r.perDestination))
	for name := range r.perDestination {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%d", name, r.perDestination[name])
	}

	fmt.Fprintf(&b, " elapsed=%s", r.Elapsed())
	return b.String()
}
