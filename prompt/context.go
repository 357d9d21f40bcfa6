// Package prompt assembles the bounded-size textual context handed to
// the completion service. The context is built as a structured value
// (an ordered list of named sections) and serialized to text only at
// the model boundary, so size and content properties are testable on
// the structure rather than on substring matching.
package prompt

import "strings"

// Section is one named block of the assembled context.
type Section struct {
	// Name identifies the section programmatically.
	Name string

	// Title is the human-readable heading rendered into the prompt.
	// Empty titles render the body without a heading.
	Title string

	// Body is the section content.
	Body string
}

// Section names in assembly order.
const (
	SectionStatistics   = "statistics"
	SectionColumns      = "columns"
	SectionSample       = "sample"
	SectionCounts       = "counts"
	SectionSearch       = "search"
	SectionInstructions = "instructions"
)

// Layout selects how sampled records are rendered.
type Layout string

const (
	// LayoutTable renders records as pipe-delimited rows with short
	// per-cell truncation.
	LayoutTable Layout = "table"

	// LayoutLongForm renders one record per paragraph with each field
	// on its own line, for interview-style free text.
	LayoutLongForm Layout = "longform"
)

// Context is the assembled prompt context: full-dataset statistics, a
// bounded sample of raw records, optional search results, and the
// instructions footer. Only the sample is size-bounded; the statistics
// always cover the complete dataset.
type Context struct {
	// Sections in render order.
	Sections []Section

	// Layout chosen for the sample section.
	Layout Layout

	// TotalRecords is the full dataset size.
	TotalRecords int

	// SampleShown is how many records the sample section renders.
	SampleShown int

	// Counting reports whether the question was detected as a
	// counting question.
	Counting bool
}

// Section returns the section with the given name, or nil.
func (c *Context) Section(name string) *Section {
	for i := range c.Sections {
		if c.Sections[i].Name == name {
			return &c.Sections[i]
		}
	}
	return nil
}

// Render serializes the context to the text sent to the model.
func (c *Context) Render() string {
	var b strings.Builder
	for _, s := range c.Sections {
		if s.Title != "" {
			b.WriteString("=== ")
			b.WriteString(s.Title)
			b.WriteString(" ===\n")
		}
		b.WriteString(s.Body)
		if !strings.HasSuffix(s.Body, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Len returns the rendered character length.
func (c *Context) Len() int {
	return len([]rune(c.Render()))
}
