package types

// Extraction is the structured result of parsing one HTML document
type Extraction struct {
	Title    string
	Content  string
	Metadata Metadata

	// Status is set only when the document declared a valid task-status.
	Status TaskStatus
	// Priority is the declared priority, or the default.
	Priority Priority

	Tags        []string
	Connections []string
	Links       []string

	// Verbatim holds the metadata keys written from unrecognized <meta>
	// names. Derived values never replace them.
	Verbatim map[string]struct{}
}

// SetVerbatim stores a page-declared meta value under its original name.
func (e *Extraction) SetVerbatim(name string, v MetaValue) {
	if e.Metadata == nil {
		e.Metadata = Metadata{}
	}
	if e.Verbatim == nil {
		e.Verbatim = make(map[string]struct{})
	}
	e.Metadata[name] = v
	e.Verbatim[name] = struct{}{}
}

// SetDerived stores a normalized value unless the page declared a meta of
// the same name.
func (e *Extraction) SetDerived(key string, v MetaValue) {
	if _, ok := e.Verbatim[key]; ok {
		return
	}
	if e.Metadata == nil {
		e.Metadata = Metadata{}
	}
	e.Metadata[key] = v
}

// HasExplicitStatus reports whether the document declared a valid status
func (e *Extraction) HasExplicitStatus() bool {
	return e.Status != ""
}
