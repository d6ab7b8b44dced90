package note

import (
	"strings"
	"time"
)

// LintResult describes how an archive document lines up with the layout
// Encode produces.
type LintResult struct {
	Valid           bool     `json:"valid"`
	Title           string   `json:"title,omitempty"`
	Sections        []string `json:"sections"`
	MissingSections []string `json:"missing_sections,omitempty"`
	HasThoughts     bool     `json:"has_thoughts"`
	NoteID          string   `json:"note_id,omitempty"`
	DecodeError     string   `json:"decode_error,omitempty"`
}

// requiredSections must appear as level-2 headings outside code fences.
var requiredSections = []string{"Content", "Metadata"}

const titlePrefix = "Note by "

// Lint checks a document's section layout and whether it decodes.
func Lint(markdown string) *LintResult {
	sections := ParseSections(markdown)
	var level2 []Section
	for _, s := range sections {
		if s.Level == 2 {
			level2 = append(level2, s)
		}
	}

	result := &LintResult{
		Valid:    true,
		Sections: SectionNames(level2),
	}
	// only the document's first line is its title
	if len(sections) > 0 && sections[0].HeaderStart == 0 && sections[0].Level == 1 {
		result.Title = strings.TrimPrefix(sections[0].HeaderName, titlePrefix)
	}

	for _, name := range requiredSections {
		if FindSectionExact(level2, name) == nil {
			result.MissingSections = append(result.MissingSections, name)
			result.Valid = false
		}
	}

	// A fixed clock keeps lint output independent of when it runs.
	n, err := DecodeAt(markdown, DefaultCollection, time.Unix(0, 0))
	if err != nil {
		result.Valid = false
		result.DecodeError = err.Error()
		return result
	}
	result.NoteID = n.ID
	result.HasThoughts = n.Thoughts != nil

	return result
}
