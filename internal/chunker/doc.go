// Package chunker splits session-log pages into individual log entries.
//
// Session logs live under memories/<year>/<month>/<day>.html. Each page
// holds a day's observations, either as <article> / class="entry"
// containers or as <h2>/<h3> sections. Every entry becomes one Memory row.
//
//	c := chunker.New()
//	entries, err := c.Split(raw)
//	if day, ok := types.SessionDate(path); ok {
//	    chunker.Anchor(entries, day)
//	}
//
// Entries longer than MaxEntryChars are split at word boundaries.
package chunker
