package rundate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liangzhi-data/newspipe/internal/rundate"
)

func TestResolve(t *testing.T) {
	now := time.Date(2020, 8, 6, 14, 30, 0, 0, time.Local)

	day, err := rundate.Resolve("yesterday", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2020, 8, 5, 0, 0, 0, 0, time.Local), day)

	day, err = rundate.Resolve("today", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2020, 8, 6, 0, 0, 0, 0, time.Local), day)

	day, err = rundate.Resolve("2020-06-23", now)
	require.NoError(t, err)
	require.Equal(t, "2020-06-23", day.Format("2006-01-02"))

	_, err = rundate.Resolve("", now)
	require.Error(t, err)

	_, err = rundate.Resolve("06/23/2020", now)
	require.Error(t, err)
}

func TestWindow(t *testing.T) {
	day := time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC)
	start, end := rundate.Window(day)
	require.Equal(t, "2020-06-30", start)
	require.Equal(t, "2020-07-01", end)
}

func TestNormalizePublishTime(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2020-06-23 16:55:01", "2020-06-23 16:55:01"},
		{"2020-06-23 16:55", "2020-06-23 16:55:00"},
		{"2020/06/23 16:55:01", "2020-06-23 16:55:01"},
		{"2020/06/23 16:55", "2020-06-23 16:55:00"},
		{"2020-06-23-16:55", "2020-06-23 16:55:00"},
		{"2020-06-23", "2020-06-23 00:00:00"},
		{"2020/06/23", "2020-06-23 00:00:00"},
		{"  2020-06-23 16:55:01  ", "2020-06-23 16:55:01"},
		// Single-digit fields are zero-padded before parsing.
		{"2020-03-25 10:3", "2020-03-25 10:03:00"},
		{"2020-03-25-10:3", "2020-03-25 10:03:00"},
		{"2020-03-25 10:3:1", "2020-03-25 10:03:01"},
		{"2020-3-5", "2020-03-05 00:00:00"},
		// Fractional seconds and zone suffixes are truncated away.
		{"2020-06-23 16:55:01.123456", "2020-06-23 16:55:01"},
	}

	for _, tt := range tests {
		got, err := rundate.NormalizePublishTime(tt.raw)
		require.NoError(t, err, tt.raw)
		require.Equal(t, tt.want, got, tt.raw)
	}

	_, err := rundate.NormalizePublishTime("三天前")
	require.Error(t, err)
	_, err = rundate.NormalizePublishTime("")
	require.Error(t, err)
}
