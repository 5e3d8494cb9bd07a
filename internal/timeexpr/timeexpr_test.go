package timeexpr

import (
	"testing"
	"time"
)

func TestParseRelative(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 9, 15, 30, 0, time.Local)
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{name: "hours", raw: "+2h", want: 2 * time.Hour},
		{name: "minutes", raw: "+30m", want: 30 * time.Minute},
		{name: "zero", raw: "+0m", want: 0},
		{name: "padded", raw: "  +1h ", want: time.Hour},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAt(tt.raw, now)
			if err != nil {
				t.Fatalf("ParseAt(%q) error: %v", tt.raw, err)
			}
			if got.Sub(now) != tt.want {
				t.Fatalf("ParseAt(%q) offset = %v, want %v", tt.raw, got.Sub(now), tt.want)
			}
		})
	}
}

func TestParseRelativeUsesWallClock(t *testing.T) {
	before := time.Now()
	got, err := Parse("+1h")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	delta := got.Sub(before.Add(time.Hour))
	if delta < 0 || delta > 5*time.Second {
		t.Fatalf("Parse(+1h) drifted by %v", delta)
	}
}

func TestParseAbsolute(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	got, err := ParseAt("2026-01-23 10:00", now)
	if err != nil {
		t.Fatalf("ParseAt error: %v", err)
	}
	want := time.Date(2026, 1, 23, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		now  time.Time
		raw  string
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			raw:  "10:00",
			want: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "already past rolls to tomorrow",
			now:  time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
			raw:  "10:00",
			want: time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly now rolls to tomorrow",
			now:  time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
			raw:  "10:00",
			want: time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "month end",
			now:  time.Date(2026, 3, 31, 23, 30, 0, 0, time.UTC),
			raw:  "08:05",
			want: time.Date(2026, 4, 1, 8, 5, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAt(tt.raw, tt.now)
			if err != nil {
				t.Fatalf("ParseAt(%q) error: %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseAt(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	now := time.Now()
	for _, raw := range []string{"", "+5d", "+h", "tomorrow", "25:00", "2026-13-40 10:00", "10", "+3000000h", "+200000000m", "+99999999999999999999h"} {
		_, err := ParseAt(raw, now)
		if err == nil {
			t.Fatalf("ParseAt(%q) expected error", raw)
		}
		if !IsParseError(err) {
			t.Fatalf("ParseAt(%q) error %v is not a ParseError", raw, err)
		}
	}
}
