package note

import (
	"regexp"
	"strings"
)

// Section represents a parsed section boundary.
type Section struct {
	Header       string // Full header line "## Your Thoughts"
	HeaderName   string // Just the name part "Your Thoughts"
	Level        int    // Number of leading '#'
	HeaderStart  int    // Byte offset of header start
	HeaderEnd    int    // Byte offset after header line (excluding \n)
	ContentStart int    // Byte offset where content starts
	ContentEnd   int    // Byte offset where content ends (before next section or EOF)
}

// headerPattern matches markdown headers (h1-h6) at the start of a line.
// Groups: full match, hash symbols, header text
// Trailing spaces/tabs on the header line are trimmed by the [^\n]+ group.
var headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+([^\n]+?)[ \t]*$`)

// fencePattern matches fenced code block delimiters (``` or ~~~) at the start of a line,
// allowing 0-3 spaces of indentation per CommonMark spec.
var fencePattern = regexp.MustCompile("(?m)^[ ]{0,3}(`{3,}|~{3,})")

// fencedRanges returns byte offset ranges [start, end) for fenced code blocks in text.
// A closing fence must use the same character and be at least as long as the opening one.
func fencedRanges(text string) [][2]int {
	matches := fencePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) < 2 {
		return nil
	}

	var ranges [][2]int
	var openChar byte
	var openLen int
	var openStart int
	inFence := false

	for _, match := range matches {
		fenceChars := text[match[2]:match[3]]
		char := fenceChars[0]
		fenceLen := len(fenceChars)

		if !inFence {
			openChar = char
			openLen = fenceLen
			openStart = match[0]
			inFence = true
		} else if char == openChar && fenceLen >= openLen {
			ranges = append(ranges, [2]int{openStart, match[1]})
			inFence = false
		}
	}
	return ranges
}

// insideFence returns true if byte offset pos falls inside any fenced range.
func insideFence(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

// ParseSections finds all markdown section headers and their boundaries.
// Headers inside fenced code blocks are ignored. Returns nil if none found.
func ParseSections(text string) []Section {
	allMatches := headerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(allMatches) == 0 {
		return nil
	}

	fences := fencedRanges(text)
	matches := allMatches
	if len(fences) > 0 {
		matches = make([][]int, 0, len(allMatches))
		for _, m := range allMatches {
			if !insideFence(m[0], fences) {
				matches = append(matches, m)
			}
		}
		if len(matches) == 0 {
			return nil
		}
	}

	sections := make([]Section, len(matches))
	for i, match := range matches {
		// match indices: [fullStart, fullEnd, hashStart, hashEnd, nameStart, nameEnd]
		contentStart := match[1]
		if contentStart < len(text) && text[contentStart] == '\n' {
			contentStart++
		}

		contentEnd := len(text)
		if i+1 < len(matches) {
			contentEnd = matches[i+1][0]
		}

		sections[i] = Section{
			Header:       text[match[0]:match[1]],
			HeaderName:   text[match[4]:match[5]],
			Level:        match[3] - match[2],
			HeaderStart:  match[0],
			HeaderEnd:    match[1],
			ContentStart: contentStart,
			ContentEnd:   contentEnd,
		}
	}

	return sections
}

// FindSectionExact finds a section by exact header name (case-insensitive).
func FindSectionExact(sections []Section, name string) *Section {
	nameLower := strings.ToLower(strings.TrimSpace(name))

	for i := range sections {
		if strings.ToLower(strings.TrimSpace(sections[i].HeaderName)) == nameLower {
			return &sections[i]
		}
	}

	return nil
}

// SectionNames returns the list of header names from parsed sections.
func SectionNames(sections []Section) []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.HeaderName
	}
	return names
}
