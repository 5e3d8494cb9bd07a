package scheduler

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

// DefaultTick is the daemon interval when none is configured.
const DefaultTick = 60 * time.Second

// Tick decides when the daemon wakes up next.
type Tick struct {
	schedule cron.Schedule
	Source   string // "seconds" | "duration" | "hhmm" | "cron"
	Raw      string
}

// Next returns the first wake-up strictly after t.
func (t Tick) Next(from time.Time) time.Time {
	if t.schedule == nil {
		return from.Add(DefaultTick)
	}
	return t.schedule.Next(from)
}

func (t Tick) String() string { return t.Raw }

// Every returns a fixed-interval tick.
func Every(d time.Duration) Tick {
	return Tick{schedule: cron.Every(d), Source: "duration", Raw: d.String()}
}

var (
	tickParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	reHHMM     = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
)

// ParseTick parses a daemon interval.
//
// Supported forms:
//   - Seconds: "60"
//   - Go duration: "90s", "5m"
//   - Interval HH:MM: "00:05" (five minutes)
//   - Cron: "*/5 * * * *", "@hourly", "@every 2m", or anything prefixed with "cron:"
func ParseTick(raw string) (Tick, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Every(DefaultTick), nil
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") || strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		expr := strings.TrimSpace(s)
		if strings.HasPrefix(low, "cron:") {
			expr = strings.TrimSpace(s[len("cron:"):])
		}
		sched, err := tickParser.Parse(expr)
		if err != nil {
			return Tick{}, errors.Wrapf(err, "invalid cron interval %q", raw)
		}
		return Tick{schedule: sched, Source: "cron", Raw: expr}, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return Tick{}, errors.New("interval must be > 0")
		}
		t := Every(time.Duration(n) * time.Second)
		t.Source, t.Raw = "seconds", s
		return t, nil
	}

	if m := reHHMM.FindStringSubmatch(s); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Tick{}, errors.Newf("invalid minutes in %q", raw)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return Tick{}, errors.New("interval must be > 0")
		}
		t := Every(d)
		t.Source, t.Raw = "hhmm", s
		return t, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return Tick{}, errors.Newf("invalid interval %q (use seconds like '60', a duration like '5m', HH:MM like '00:05', or cron like '*/5 * * * *')", raw)
	}
	if d <= 0 {
		return Tick{}, errors.New("interval must be > 0")
	}
	t := Every(d)
	t.Raw = s
	return t, nil
}
