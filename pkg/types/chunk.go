package types

import (
	"errors"
	"path"
	"strconv"
	"strings"
	"time"
)

// LogEntry is one observation split out of a session-log document
type LogEntry struct {
	Heading   string
	Content   string
	EntryTime *time.Time // Nullable - entries without a <time> element
}

// Validate checks that the entry carries some text
func (e *LogEntry) Validate() error {
	if e.Content == "" && e.Heading == "" {
		return errors.New("log entry cannot be empty")
	}
	return nil
}

// SessionDate recovers the calendar day from a year/month/day.html path.
func SessionDate(p string) (time.Time, bool) {
	p = strings.TrimSuffix(path.Clean(strings.ReplaceAll(p, `\`, "/")), path.Ext(p))
	segs := strings.Split(p, "/")
	if len(segs) < 3 {
		return time.Time{}, false
	}
	y, errY := strconv.Atoi(segs[len(segs)-3])
	m, errM := strconv.Atoi(segs[len(segs)-2])
	d, errD := strconv.Atoi(segs[len(segs)-1])
	if errY != nil || errM != nil || errD != nil || m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	day := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if day.Day() != d {
		return time.Time{}, false // e.g. 02/30
	}
	return day, true
}
