package stats_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liangzhi-data/newspipe/internal/stats"
)

func TestAddPersisted(t *testing.T) {
	run := stats.NewRun()

	run.AddPersisted("documents")
	run.AddPersisted("documents")
	run.AddPersisted("kb_event_med")

	require.Equal(t, 3, run.Persisted)
	require.Equal(t, 2, run.PersistedTo("documents"))
	require.Equal(t, 1, run.PersistedTo("kb_event_med"))
	require.Equal(t, 0, run.PersistedTo("unknown"))
}

func TestSummary(t *testing.T) {
	run := stats.NewRun()
	run.Input = 25
	run.Annotated = 20
	run.Filtered = 3
	run.Duplicates = 1
	run.Failed = 1
	run.AddPersisted("kb_event_med")
	run.AddPersisted("kb_event_ai")

	summary := run.Summary()
	require.Contains(t, summary, "input=25 annotated=20 filtered=3 duplicates=1 failed=1 persisted=2")
	// Destinations render sorted by name.
	require.Contains(t, summary, "kb_event_ai=1 kb_event_med=1")
	require.Contains(t, summary, "elapsed=")
}
