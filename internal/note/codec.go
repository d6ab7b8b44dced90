package note

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/smn/internal/errors"
)

// Document is one note rendered as an archive document.
type Document struct {
	Markdown string
	Filename string // suggested base name, without extension
}

// DateLayout is how created and saved dates are rendered in documents.
// It matches the en-US short date shape older archives were written with.
const DateLayout = "1/2/2006"

// savedLayouts are tried in order when recovering the saved date.
var savedLayouts = []string{DateLayout, "2006-01-02", time.RFC3339}

// Section markers written by Encode and anchored on by Decode.
const (
	contentHeading  = "\n## Content\n\n"
	separator       = "\n\n---\n"
	thoughtsHeading = "\n## Your Thoughts\n\n"
	appendixMarker  = "\n## Metadata\n\n- **Event JSON:**\n```json\n"
)

var (
	eventJSONPattern      = regexp.MustCompile("(?s)- \\*\\*Event JSON:\\*\\*\n```json\n(.*?)\n```")
	authorMetadataPattern = regexp.MustCompile("(?s)- \\*\\*Author Metadata:\\*\\*\n```json\n(.*?)\n```")
	pubkeyPattern         = regexp.MustCompile("\\*\\*Author Pubkey:\\*\\* `([^`]+)`")
	upvotesPattern        = regexp.MustCompile(`\*\*Upvotes:\*\* (\d+)`)
	savedPattern          = regexp.MustCompile(`\*\*Saved:\*\* ([^\n]+)`)
	thoughtsPattern       = regexp.MustCompile(`(?s)## Your Thoughts\n\n(.*?)\n\n---`)
	thoughtsBeforeMeta    = regexp.MustCompile(`(?s)## Your Thoughts\n\n(.*?)\n\n## Metadata`)
	filenameStrip         = regexp.MustCompile(`[^\w\s-]`)
)

// headerRunPattern matches the fixed block of header lines Encode writes
// between the author line and the content section.
var headerRunPattern = regexp.MustCompile("(?m)^\\*\\*Author Pubkey:\\*\\* `([^`\n]+)`\n" +
	"\\*\\*Event ID:\\*\\* `[^`\n]*`\n" +
	"\\*\\*Kind:\\*\\* [^\n]*\n" +
	"\\*\\*Created:\\*\\* [^\n]*\n" +
	"\\*\\*Saved:\\*\\* ([^\n]*)\n" +
	"\\*\\*Upvotes:\\*\\* (\\d+)\n" +
	"\\*\\*Collection:\\*\\* [^\n]*\n\n---\n")

// Encode renders a note as an archive document. Output depends only on n.
func Encode(n Note) (*Document, error) {
	eventJSON, err := marshalBlock(n.Event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	meta := n.Author.Metadata
	if meta == nil {
		meta = Metadata{}
	}
	metaJSON, err := marshalBlock(meta)
	if err != nil {
		return nil, fmt.Errorf("encode author metadata: %w", err)
	}

	name := DisplayName(n.Author)

	var b strings.Builder
	fmt.Fprintf(&b, "# Note by %s\n\n", name)
	fmt.Fprintf(&b, "**Author:** %s\n", name)
	fmt.Fprintf(&b, "**Author Pubkey:** `%s`\n", n.Author.Pubkey)
	fmt.Fprintf(&b, "**Event ID:** `%s`\n", n.Event.ID)
	fmt.Fprintf(&b, "**Kind:** %d\n", n.Event.Kind)
	fmt.Fprintf(&b, "**Created:** %s\n", FormatDate(n.Event.CreatedAt*1000))
	fmt.Fprintf(&b, "**Saved:** %s\n", FormatDate(n.SavedAt))
	fmt.Fprintf(&b, "**Upvotes:** %d\n", n.Upvotes)
	fmt.Fprintf(&b, "**Collection:** %s\n\n---\n", n.Collection)

	b.WriteString(contentHeading)
	b.WriteString(n.Event.Content)
	b.WriteString(separator)

	if HasThoughts(n.Thoughts) {
		b.WriteString(thoughtsHeading)
		b.WriteString(*n.Thoughts)
		b.WriteString(separator)
	}

	b.WriteString(appendixMarker)
	b.WriteString(eventJSON)
	b.WriteString("\n```\n\n- **Author Metadata:**\n```json\n")
	b.WriteString(metaJSON)
	b.WriteString("\n```\n")

	return &Document{
		Markdown: b.String(),
		Filename: SuggestFilename(n.Event),
	}, nil
}

// SuggestFilename derives a file base name from the first 50 characters of
// the content, falling back to note-<id prefix> when nothing usable remains.
func SuggestFilename(e Event) string {
	preview := strings.TrimSpace(filenameStrip.ReplaceAllString(truncateRunes(e.Content, 50), ""))
	if preview == "" {
		return "note-" + truncateRunes(e.ID, 8)
	}
	return preview
}

// FormatDate renders a millisecond timestamp with DateLayout in UTC.
func FormatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}

// Decode parses an archive document back into a note filed under collection.
// The saved date only survives at day granularity; when it can't be read the
// current time is used.
func Decode(markdown, collection string) (*Note, error) {
	return DecodeAt(markdown, collection, time.Now())
}

// DecodeAt is Decode with an explicit fallback time for the saved date.
// Failures are *errors.SMNError with code DECODE_FAILED.
func DecodeAt(markdown, collection string, now time.Time) (*Note, error) {
	appendix := markdown
	if i := strings.LastIndex(markdown, appendixMarker); i >= 0 {
		appendix = markdown[i:]
	}

	eventMatch := eventJSONPattern.FindStringSubmatch(appendix)
	if eventMatch == nil {
		return nil, errors.NewDecodeFailed("no event payload found")
	}
	var event Event
	if err := json.Unmarshal([]byte(eventMatch[1]), &event); err != nil {
		return nil, errors.NewDecodeFailed(fmt.Sprintf("invalid event JSON: %v", err))
	}
	if event.ID == "" {
		return nil, errors.NewDecodeFailed("event payload has no id")
	}

	var metadata Metadata
	if m := authorMetadataPattern.FindStringSubmatch(appendix); m != nil {
		dec := json.NewDecoder(strings.NewReader(m[1]))
		dec.UseNumber()
		var parsed Metadata
		if err := dec.Decode(&parsed); err != nil {
			return nil, errors.NewDecodeFailed(fmt.Sprintf("invalid author metadata JSON: %v", err))
		}
		if len(parsed) > 0 {
			metadata = parsed
		}
	}

	h, ok := parseHeader(markdown, event.Content)
	if !ok {
		return nil, errors.NewDecodeFailed("no author pubkey found")
	}

	upvotes := 0
	if v, err := strconv.Atoi(h.upvotes); err == nil {
		upvotes = v
	}

	savedAt := now.UnixMilli()
	if t, ok := parseSavedDate(h.saved); ok {
		savedAt = t.UnixMilli()
	}

	return &Note{
		ID:    event.ID,
		Event: event,
		Author: Author{
			Pubkey:   h.pubkey,
			Metadata: metadata,
		},
		Collection: collection,
		Upvotes:    upvotes,
		SavedAt:    savedAt,
		Thoughts:   extractThoughts(markdown, event.Content),
	}, nil
}

type headerFields struct {
	pubkey  string
	saved   string
	upvotes string
}

// parseHeader reads the pubkey, saved date and upvotes from the header. The
// author name is written above these lines and comes from untrusted metadata,
// so the fields are taken from the full run of header lines that sits right
// before the exact content section. The last such run wins since name lines
// always come first. Documents without that shape fall back to the loose
// per-field patterns, again taking the last match in the header.
func parseHeader(markdown, content string) (headerFields, bool) {
	body := markdown
	if end := strings.LastIndex(markdown, appendixMarker); end >= 0 {
		body = markdown[:end]
	}
	block := contentHeading + content + separator

	runs := headerRunPattern.FindAllStringSubmatchIndex(body, -1)
	for i := len(runs) - 1; i >= 0; i-- {
		m := runs[i]
		if strings.HasPrefix(body[m[1]:], block) {
			return headerFields{
				pubkey:  body[m[2]:m[3]],
				saved:   body[m[4]:m[5]],
				upvotes: body[m[6]:m[7]],
			}, true
		}
	}

	header := body
	if i := strings.LastIndex(body, block); i >= 0 {
		header = body[:i]
	} else if i := strings.Index(body, contentHeading); i >= 0 {
		header = body[:i]
	}

	pubkey := lastSubmatch(pubkeyPattern, header)
	if pubkey == "" {
		return headerFields{}, false
	}
	return headerFields{
		pubkey:  pubkey,
		saved:   lastSubmatch(savedPattern, header),
		upvotes: lastSubmatch(upvotesPattern, header),
	}, true
}

func lastSubmatch(re *regexp.Regexp, s string) string {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1][1]
}

// extractThoughts finds the annotation block. It first anchors on the exact
// content section (known from the event) and the appendix, which keeps
// separators and headings inside the annotation intact. Documents that don't
// have that exact shape fall back to the heading patterns.
func extractThoughts(markdown, content string) *string {
	if end := strings.LastIndex(markdown, appendixMarker); end >= 0 {
		body := markdown[:end]
		block := contentHeading + content + separator
		if i := strings.Index(body, block); i >= 0 {
			rest := body[i+len(block):]
			if rest == "" {
				return nil
			}
			if strings.HasPrefix(rest, thoughtsHeading) && strings.HasSuffix(rest, separator) &&
				len(rest) >= len(thoughtsHeading)+len(separator) {
				return NormalizeThoughts(rest[len(thoughtsHeading) : len(rest)-len(separator)])
			}
		}
	}

	if m := thoughtsPattern.FindStringSubmatch(markdown); m != nil {
		return NormalizeThoughts(m[1])
	}
	if m := thoughtsBeforeMeta.FindStringSubmatch(markdown); m != nil {
		return NormalizeThoughts(m[1])
	}
	return nil
}

func parseSavedDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range savedLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// marshalBlock renders v as two-space indented JSON without HTML escaping,
// so content survives byte for byte.
func marshalBlock(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
