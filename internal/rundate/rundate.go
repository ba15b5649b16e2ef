// Package rundate handles the single date argument every job takes, plus the
// tolerant normalization applied to publish times coming off the crawlers.
package rundate

import (
	"fmt"
	"strings"
	"time"

	"github.com/liangzhi-data/newspipe/internal/models"
)

// Resolve turns the CLI date argument into the run day. Accepted forms are
// "YYYY-MM-DD" and the literals "yesterday" and "today".
func Resolve(arg string, now time.Time) (time.Time, error) {
	switch strings.TrimSpace(arg) {
	case "":
		return time.Time{}, fmt.Errorf("missing run date argument")
	case "yesterday":
		y := now.AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, now.Location()), nil
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	default:
		day, err := time.Parse(models.DateLayout, strings.TrimSpace(arg))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid run date %q: %w", arg, err)
		}
		return day, nil
	}
}

// Window returns the inclusive [day, day+1) bounds as date strings, the form
// every windowed store query takes.
func Window(day time.Time) (start, end string) {
	return day.Format(models.DateLayout), day.AddDate(0, 0, 1).Format(models.DateLayout)
}

// publishLayouts lists the timestamp shapes crawlers have been seen to emit.
var publishLayouts = []string{
	models.TimeLayout,
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02-15:04",
	models.DateLayout,
	"2006/01/02",
}

// NormalizePublishTime coerces a crawler-reported timestamp into TimeLayout.
// Go layouts are fixed-width, but crawlers emit single-digit fields like
// "2020-03-25 10:3", so every field is zero-padded before the layout table is
// tried. Unrecognized shapes are an error; the caller skips the document.
func NormalizePublishTime(raw string) (string, error) {
	cleaned := zeroPadFields(strings.TrimSpace(raw))
	if len(cleaned) > len(models.TimeLayout) {
		cleaned = cleaned[:len(models.TimeLayout)]
	}
	for _, layout := range publishLayouts {
		if ts, err := time.Parse(layout, cleaned); err == nil {
			return ts.Format(models.TimeLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized publish time %q", raw)
}

// zeroPadFields widens every single-digit run of digits to two, so month, day
// and time-of-day fields line up with the fixed-width layouts.
func zeroPadFields(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 4)

	digits := 0
	flush := func(end int) {
		if digits == 1 {
			b.WriteByte('0')
		}
		b.WriteString(raw[end-digits : end])
		digits = 0
	}

	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits++
			continue
		}
		flush(i)
		b.WriteByte(raw[i])
	}
	flush(len(raw))
	return b.String()
}
