// Package eventlog implements the log tailer (C1) and event parser (C2).
// Both are grounded in original_source/dashboard.py's LogTailer and
// parse_log_line/strip_ansi: byte-offset tracking with truncation-resets
// the offset, and a marker-glyph table that maps the first matching
// emoji in an event's text to a closed-set event-type tag.
package eventlog

import (
	"regexp"
	"strings"
	"time"

	"github.com/mhofwell/claude-dashboard/internal/domain"
)

var ansiRE = regexp.MustCompile("\x1b\\[[0-9;]*m")

// StripANSI removes terminal escape sequences from a raw log line.
func StripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// marker associates a glyph with the event-type tag it yields. Order
// matters: the first glyph found by substring scan over this fixed list
// wins, matching dashboard.py's EVENT_STYLES iteration order.
type marker struct {
	glyph string
	typ   domain.EventType
}

var markers = []marker{
	{"🔧", domain.EventTool},
	{"📖", domain.EventRead},
	{"🔍", domain.EventSearch},
	{"🌐", domain.EventFetch},
	{"🔌", domain.EventMCP},
	{"⚡", domain.EventSkill},
	{"🚀", domain.EventAgentSpawn},
	{"🤖", domain.EventAgentTask},
	{"🛬", domain.EventAgentFinish},
	{"🟢", domain.EventSessionStart},
	{"🔴", domain.EventSessionEnd},
	{"🏁", domain.EventResponseFinish},
	{"📐", domain.EventPlan},
	{"👋", domain.EventInputNeeded},
	{"🔐", domain.EventPermission},
	{"❓", domain.EventQuestion},
	{"✅", domain.EventCompleted},
	{"⚠️", domain.EventCompact},
	{"📋", domain.EventTask},
	{"💬", domain.EventMessage},
}

func classify(text string) domain.EventType {
	for _, m := range markers {
		if strings.Contains(text, m.glyph) {
			return m.typ
		}
	}
	return domain.EventUnknown
}

// Parse parses one raw pipe-delimited log line into an Event. Lines
// without a project string (fewer than 4 fields) are discarded per §3's
// "an Event without a project attribution is discarded" invariant, and
// an empty/unparseable timestamp likewise discards the entry.
func Parse(raw string) (domain.Event, bool) {
	clean := StripANSI(raw)
	fields := strings.Split(clean, "│")

	var tsRaw, project, branch, body string
	switch {
	case len(fields) >= 4:
		tsRaw = strings.TrimSpace(fields[0])
		project = strings.TrimSpace(fields[1])
		branch = strings.TrimSpace(fields[2])
		body = strings.TrimSpace(strings.Join(fields[3:], "│"))
	case len(fields) >= 2:
		tsRaw = strings.TrimSpace(fields[0])
		project = ""
		branch = ""
		body = strings.TrimSpace(strings.Join(fields[1:], "│"))
	default:
		return domain.Event{}, false
	}

	if branch == "-" {
		branch = ""
	}
	if project == "" {
		return domain.Event{}, false
	}

	ts, ok := ParseTimestamp(tsRaw, time.Now())
	if !ok {
		return domain.Event{}, false
	}

	return domain.Event{
		Timestamp: ts,
		Project:   project,
		Branch:    branch,
		Type:      classify(body),
		Text:      body,
	}, true
}

var tzSuffixRE = regexp.MustCompile(`(AM|PM)\s+[A-Z]{2,5}$`)

// timeLayouts are tried in order; a leading "MM/DD " date is optional,
// defaulting to the reference date (today) when absent, matching
// dashboard.py's _parse_timestamp fallback list.
var timeLayouts = []string{
	"01/02 03:04:05 PM",
	"01/02 03:04 PM",
	"03:04:05 PM",
	"03:04 PM",
}

// ParseTimestamp parses the MM/DD HH:MM[:SS] AM|PM or HH:MM[:SS] AM|PM
// forms, stripping any trailing timezone abbreviation first. The missing
// year defaults to now's year; the date-less form defaults to today
// (in UTC, per §3's "parsed timestamp (UTC)" requirement).
func ParseTimestamp(raw string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	s = tzSuffixRE.ReplaceAllString(s, "${1}")
	s = strings.TrimSpace(s)

	hasDate := strings.Contains(s, "/")
	now = now.UTC()

	for _, layout := range timeLayouts {
		layoutHasDate := strings.HasPrefix(layout, "01/02")
		if layoutHasDate != hasDate {
			continue
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layoutHasDate {
			t = t.AddDate(now.Year(), 0, 0)
		} else {
			t = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		}
		return t, true
	}
	return time.Time{}, false
}
