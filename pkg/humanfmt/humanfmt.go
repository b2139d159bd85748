// Package humanfmt provides human-readable formatting for bytes and
// durations, for log fields aimed at operators.
package humanfmt

import (
	"fmt"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// Bytes formats a byte count using IEC binary units.
// Returns a compact string like "1.23 MiB".
func Bytes(b int64) string {
	if b < 0 {
		return fmt.Sprintf("%d B", b)
	}

	switch {
	case b >= GiB:
		return fmt.Sprintf("%.2f GiB", float64(b)/GiB)
	case b >= MiB:
		return fmt.Sprintf("%.2f MiB", float64(b)/MiB)
	case b >= KiB:
		return fmt.Sprintf("%.2f KiB", float64(b)/KiB)
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// Examples: "1.23s", "45.6ms", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	if d < 0 {
		return d.String()
	}

	switch {
	case d >= time.Hour:
		h := d / time.Hour
		m := (d % time.Hour) / time.Minute
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	case d >= time.Minute:
		m := d / time.Minute
		s := (d % time.Minute) / time.Second
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
}
