// Package draft reads social media drafts from org-mode files and keeps the
// job scheduler in sync with them.
//
// A draft is a level-2 (or deeper) heading with a body:
//
//	* Launch week                        <- level 1: section, never a draft
//	** TODO [#A] Announce release
//	   SCHEDULED: <2025-06-12 Thu 09:30>
//	   :PROPERTIES:
//	   :PLATFORM: linkedin
//	   :ID: release-announce
//	   :END:
//	   We shipped it.
//
// The file is the source of truth: Manager.Sync schedules new drafts and
// cancels jobs whose draft disappeared.
package draft

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"socialia/internal/platform"
	"socialia/pkg/fileutil"
)

type Status string

const (
	StatusTodo      Status = "TODO"
	StatusDone      Status = "DONE"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus upper-cases s and validates it.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusTodo, StatusDone, StatusCancelled:
		return st, nil
	default:
		return "", errors.Newf("invalid draft status %q (use TODO, DONE or CANCELLED)", s)
	}
}

// DefaultPlatform is used when a draft has no PLATFORM property.
const DefaultPlatform = "twitter"

// Property keys with a meaning of their own.
const (
	PropPlatform = "PLATFORM"
	PropID       = "ID"
	PropPostedAt = "POSTED_AT"
	PropPostID   = "POST_ID"
	PropPostURL  = "POST_URL"
)

// Draft is one schedulable heading.
type Draft struct {
	Headline   string            `json:"headline"`
	Status     Status            `json:"status"`
	Priority   string            `json:"priority,omitempty"`
	Scheduled  *time.Time        `json:"scheduled,omitempty"`
	Platform   string            `json:"platform"`
	DraftID    string            `json:"draft_id,omitempty"`
	Content    string            `json:"content"`
	LineNumber int               `json:"line_number"`
	Properties map[string]string `json:"properties,omitempty"`
}

func (d Draft) IsPending() bool { return d.Status == StatusTodo }

// IsDue reports a pending draft whose scheduled time has passed.
func (d Draft) IsDue(now time.Time) bool {
	return d.IsPending() && d.Scheduled != nil && !d.Scheduled.After(now)
}

// IsFuture reports a pending draft scheduled strictly after now.
func (d Draft) IsFuture(now time.Time) bool {
	return d.IsPending() && d.Scheduled != nil && d.Scheduled.After(now)
}

// Key is the reconciliation identity: the ID property when set, else the headline.
func (d Draft) Key() string {
	if d.DraftID != "" {
		return "id:" + d.DraftID
	}
	return "headline:" + d.Headline
}

// Kwargs turns the drawer properties into platform options (lower-case keys),
// leaving out the keys the draft machinery owns.
func (d Draft) Kwargs() platform.Options {
	out := platform.Options{}
	for k, v := range d.Properties {
		switch k {
		case PropPlatform, PropID, PropPostedAt, PropPostID, PropPostURL:
			continue
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

var (
	reHeading   = regexp.MustCompile(`^\*+(\s|$)`)
	reDraft     = regexp.MustCompile(`^\*{2,}\s+(?:(TODO|DONE|CANCELLED)(?:\s+|$))?(?:\[#([ABC])\]\s*)?(.+?)\s*$`)
	reScheduled = regexp.MustCompile(`SCHEDULED:\s*<(\d{4}-\d{2}-\d{2})(?:\s+\w+)?(?:\s+(\d{2}:\d{2}))?>`)
	reProperty  = regexp.MustCompile(`^:(\w+):\s*(.+)$`)
	reStatusTok = regexp.MustCompile(`^(\*+\s+)(TODO|DONE|CANCELLED)(\s+|$)`)
	reStars     = regexp.MustCompile(`^(\*+\s+)`)
)

const (
	drawerStart = ":PROPERTIES:"
	drawerEnd   = ":END:"
)

func isHeading(line string) bool { return reHeading.MatchString(line) }

func isDrawerLine(line, marker string) bool {
	return strings.EqualFold(strings.TrimSpace(line), marker)
}

// File is an in-memory line buffer of one draft file.
type File struct {
	path  string
	loc   *time.Location
	lines []string
}

// Open reads path. Scheduled times are interpreted in loc (time.Local when nil).
func Open(path string, loc *time.Location) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read draft file")
	}
	if loc == nil {
		loc = time.Local
	}
	return &File{path: path, loc: loc, lines: strings.Split(string(b), "\n")}, nil
}

func (f *File) Path() string { return f.path }

// String returns the current buffer.
func (f *File) String() string { return strings.Join(f.lines, "\n") }

// Parse extracts every draft. Headings whose body has no content are skipped.
func (f *File) Parse() []Draft {
	var drafts []Draft
	for i := 0; i < len(f.lines); {
		m := reDraft.FindStringSubmatch(f.lines[i])
		if m == nil {
			i++
			continue
		}
		d := Draft{
			Headline:   m[3],
			Status:     Status(m[1]),
			Priority:   m[2],
			Platform:   DefaultPlatform,
			LineNumber: i,
			Properties: map[string]string{},
		}
		if d.Status == "" {
			d.Status = StatusTodo
		}

		var content []string
		inDrawer := false
		for i++; i < len(f.lines) && !isHeading(f.lines[i]); i++ {
			line := f.lines[i]
			if sm := reScheduled.FindStringSubmatch(line); sm != nil {
				hm := sm[2]
				if hm == "" {
					hm = "00:00"
				}
				if t, err := time.ParseInLocation("2006-01-02 15:04", sm[1]+" "+hm, f.loc); err == nil {
					d.Scheduled = &t
				}
				continue
			}
			if isDrawerLine(line, drawerStart) {
				inDrawer = true
				continue
			}
			if isDrawerLine(line, drawerEnd) {
				inDrawer = false
				continue
			}
			if inDrawer {
				if pm := reProperty.FindStringSubmatch(strings.TrimSpace(line)); pm != nil {
					key, val := strings.ToUpper(pm[1]), strings.TrimSpace(pm[2])
					d.Properties[key] = val
					switch key {
					case PropPlatform:
						d.Platform = strings.ToLower(val)
					case PropID:
						d.DraftID = val
					}
				}
				continue
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "" && len(content) == 0 {
				continue
			}
			if strings.HasPrefix(trimmed, "#+") {
				continue
			}
			content = append(content, line)
		}

		d.Content = strings.TrimSpace(strings.Join(content, "\n"))
		if d.Content != "" {
			drafts = append(drafts, d)
		}
	}
	return drafts
}

// headingLine locates d in the buffer, falling back to a headline search when
// the buffer shifted since d was parsed.
func (f *File) headingLine(d Draft) (int, error) {
	matches := func(i int) bool {
		m := reDraft.FindStringSubmatch(f.lines[i])
		return m != nil && m[3] == d.Headline
	}
	if d.LineNumber >= 0 && d.LineNumber < len(f.lines) && matches(d.LineNumber) {
		return d.LineNumber, nil
	}
	for i := range f.lines {
		if matches(i) {
			return i, nil
		}
	}
	return -1, errors.Newf("draft %q not found in %s", d.Headline, f.path)
}

// SetStatus rewrites the heading keyword (or inserts one) and saves the file.
func (f *File) SetStatus(d Draft, status Status) error {
	i, err := f.headingLine(d)
	if err != nil {
		return err
	}
	line := f.lines[i]
	if reStatusTok.MatchString(line) {
		line = reStatusTok.ReplaceAllString(line, "${1}"+string(status)+"${3}")
	} else {
		line = reStars.ReplaceAllString(line, "${1}"+string(status)+" ")
	}
	f.lines[i] = line
	return f.save()
}

// SetProperty updates key in the draft's drawer, inserts it before :END:, or
// creates a drawer after the SCHEDULED line (else right after the heading).
func (f *File) SetProperty(d Draft, key, value string) error {
	h, err := f.headingLine(d)
	if err != nil {
		return err
	}
	entry := "   :" + key + ": " + value

	inDrawer := false
	end := -1
	for i := h + 1; i < len(f.lines) && !isHeading(f.lines[i]); i++ {
		line := f.lines[i]
		if isDrawerLine(line, drawerStart) {
			inDrawer = true
			continue
		}
		if isDrawerLine(line, drawerEnd) {
			end = i
			break
		}
		if inDrawer {
			if pm := reProperty.FindStringSubmatch(strings.TrimSpace(line)); pm != nil && strings.EqualFold(pm[1], key) {
				f.lines[i] = entry
				return f.save()
			}
		}
	}

	if end > 0 {
		f.insert(end, entry)
	} else {
		pos := h + 1
		if pos < len(f.lines) && strings.Contains(f.lines[pos], "SCHEDULED:") {
			pos++
		}
		f.insert(pos, "   "+drawerStart, entry, "   "+drawerEnd)
	}
	return f.save()
}

func (f *File) insert(at int, lines ...string) {
	out := make([]string, 0, len(f.lines)+len(lines))
	out = append(out, f.lines[:at]...)
	out = append(out, lines...)
	out = append(out, f.lines[at:]...)
	f.lines = out
}

func (f *File) save() error {
	return fileutil.WriteFile(f.path, []byte(f.String()), 0o644)
}
