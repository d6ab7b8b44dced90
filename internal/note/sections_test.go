package note

import (
	"strings"
	"testing"
)

var testDocument = "# Note by fiatjaf\n\n**Author:** fiatjaf\n\n---\n\n## Content\n\nGM\n\n---\n\n## Your Thoughts\n\nNice\n\n---\n\n## Metadata\n\n- **Event JSON:**\n```json\n{}\n```\n"

func TestParseSections_Document(t *testing.T) {
	sections := ParseSections(testDocument)
	if len(sections) != 4 {
		t.Fatalf("Expected 4 sections, got %d", len(sections))
	}

	expected := []struct {
		name  string
		level int
	}{
		{"Note by fiatjaf", 1},
		{"Content", 2},
		{"Your Thoughts", 2},
		{"Metadata", 2},
	}
	for i, want := range expected {
		if sections[i].HeaderName != want.name {
			t.Errorf("Section %d: HeaderName = %q, want %q", i, sections[i].HeaderName, want.name)
		}
		if sections[i].Level != want.level {
			t.Errorf("Section %d: Level = %d, want %d", i, sections[i].Level, want.level)
		}
	}
}

func TestParseSections_HeaderLevels(t *testing.T) {
	text := `# Title
Level 1

### Subsection
Level 3

###### Deep
Level 6
`
	sections := ParseSections(text)
	if len(sections) != 3 {
		t.Fatalf("Expected 3 sections, got %d", len(sections))
	}

	wantLevels := []int{1, 3, 6}
	for i, want := range wantLevels {
		if sections[i].Level != want {
			t.Errorf("Section %d level = %d, want %d", i, sections[i].Level, want)
		}
	}
	if sections[2].HeaderName != "Deep" {
		t.Errorf("Section 2 name = %q, want 'Deep'", sections[2].HeaderName)
	}
}

func TestParseSections_NoSections(t *testing.T) {
	text := `{"id": "abc", "content": "plain"}`
	sections := ParseSections(text)
	if sections != nil {
		t.Errorf("Expected nil for text without headers, got %d sections", len(sections))
	}
}

func TestParseSections_ContentBoundaries(t *testing.T) {
	text := `## Content
Line 1
Line 2

## Metadata
JSON here
`
	sections := ParseSections(text)

	content := text[sections[0].ContentStart:sections[0].ContentEnd]
	if want := "Line 1\nLine 2\n\n"; content != want {
		t.Errorf("Content section = %q, want %q", content, want)
	}

	content = text[sections[1].ContentStart:sections[1].ContentEnd]
	if want := "JSON here\n"; content != want {
		t.Errorf("Metadata section = %q, want %q", content, want)
	}
}

func TestFindSectionExact(t *testing.T) {
	sections := ParseSections(testDocument)

	if s := FindSectionExact(sections, "Content"); s == nil || s.HeaderName != "Content" {
		t.Errorf("FindSectionExact('Content') failed")
	}
	if s := FindSectionExact(sections, "your thoughts"); s == nil || s.HeaderName != "Your Thoughts" {
		t.Errorf("FindSectionExact('your thoughts') case-insensitive failed")
	}
	if s := FindSectionExact(sections, "Thoughts"); s != nil {
		t.Errorf("FindSectionExact('Thoughts') should not match partially, got %q", s.HeaderName)
	}
	if s := FindSectionExact(sections, "Nonexistent"); s != nil {
		t.Errorf("FindSectionExact('Nonexistent') should return nil")
	}
}

func TestParseSections_IgnoresHeadersInFencedCodeBlocks(t *testing.T) {
	text := "## Content\nSee below\n\n```md\n## Metadata\nnot real\n```\n\n## Metadata\nreal\n"
	sections := ParseSections(text)

	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	if sections[1].HeaderName != "Metadata" {
		t.Errorf("Section 1 = %q, want 'Metadata'", sections[1].HeaderName)
	}

	body := text[sections[0].ContentStart:sections[0].ContentEnd]
	if !strings.Contains(body, "```md") || !strings.Contains(body, "not real") {
		t.Error("Content section should include the whole code fence")
	}
}

func TestParseSections_IgnoresHeadersInTildeFence(t *testing.T) {
	text := "## Content\nGM\n\n~~~\n## Fake Header\nx\n~~~\n\n## Metadata\n{}\n"
	sections := ParseSections(text)

	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	if sections[0].HeaderName != "Content" || sections[1].HeaderName != "Metadata" {
		t.Errorf("Sections = %v, want [Content Metadata]", SectionNames(sections))
	}
}

func TestParseSections_UnclosedFence_NoFiltering(t *testing.T) {
	text := "## Content\nGM\n\n```\n## Metadata\n{}\n"
	sections := ParseSections(text)

	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections (unclosed fence = no filtering), got %d", len(sections))
	}
}

func TestParseSections_IndentedFence(t *testing.T) {
	text := "## Content\nGM\n\n   ```\n## Fake\nx\n   ```\n\n## Metadata\n{}\n"
	sections := ParseSections(text)

	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections (indented fence should be recognized), got %d", len(sections))
	}
}

func TestParseSections_FenceTypeMustMatch(t *testing.T) {
	// ~~~ opens, so ``` must not close it.
	text := "## Content\nGM\n\n~~~\n## Fake\n```\nstill in fence\n~~~\n\n## Metadata\n{}\n"
	sections := ParseSections(text)

	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections (mismatched fence type should not close), got %d", len(sections))
	}
}

func TestParseSections_ClosingFenceMustBeAtLeastAsLong(t *testing.T) {
	text := "## Content\nGM\n\n````\n## Fake\n```\nstill in fence\n````\n\n## Metadata\n{}\n"
	sections := ParseSections(text)

	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections (shorter fence should not close), got %d", len(sections))
	}
}

func TestSectionNames(t *testing.T) {
	names := SectionNames(ParseSections(testDocument))

	expected := []string{"Note by fiatjaf", "Content", "Your Thoughts", "Metadata"}
	if len(names) != len(expected) {
		t.Fatalf("SectionNames returned %d names, want %d", len(names), len(expected))
	}
	for i, want := range expected {
		if names[i] != want {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
}
