// Package archive packs notes into a zip of markdown documents and reads
// such zips back into import batches.
package archive

import (
	"cmp"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/hpungsan/smn/internal/note"
)

// Entry names the packer writes and the unpacker ignores.
const (
	ReadmeName            = "README.md"
	SummaryName           = "SUMMARY.md"
	CollectionSummaryName = "_COLLECTION_SUMMARY.md"
)

// DefaultExportPrefix is the product prefix of generated archive names.
const DefaultExportPrefix = "somanynotes.com"

const (
	topAuthorLimit = 10
	previewRunes   = 100
)

// timestampLayout renders generation times in summaries.
const timestampLayout = "1/2/2006, 3:04:05 PM"

var (
	forbiddenChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// PackInput maps collection names to their notes. Collections fixes the
// iteration order; every registered collection should be listed, including
// empty ones.
type PackInput struct {
	Collections []string
	Notes       map[string][]note.Note
}

// InputFromState groups a store's notes by collection in registry order.
// Notes filed under an unregistered collection get their own group after the
// registered ones.
func InputFromState(state note.State) PackInput {
	in := PackInput{
		Collections: slices.Clone(state.Collections),
		Notes:       state.ByCollection(),
	}
	for _, n := range state.Notes {
		if !slices.Contains(in.Collections, n.Collection) {
			in.Collections = append(in.Collections, n.Collection)
		}
	}
	return in
}

// PackStats summarizes what Pack wrote.
type PackStats struct {
	Notes       int `json:"notes"`
	Collections int `json:"collections"`
	Folders     int `json:"folders"`
}

// Pack writes the archive for in to w. Summaries embed now; everything else
// depends only on in.
func Pack(w io.Writer, in PackInput, now time.Time) (*PackStats, error) {
	zw := zip.NewWriter(w)
	stats := &PackStats{Collections: len(in.Collections)}

	if err := writeEntry(zw, ReadmeName, readme(now), now); err != nil {
		return nil, err
	}
	if err := writeEntry(zw, SummaryName, summary(in, now), now); err != nil {
		return nil, err
	}

	for _, name := range in.Collections {
		notes := in.Notes[name]
		if len(notes) == 0 {
			continue
		}

		folder := SanitizeFolderName(name)
		ranked := note.SortRanked(notes)
		for i, n := range ranked {
			doc, err := note.Encode(n)
			if err != nil {
				return nil, fmt.Errorf("encode note %s: %w", n.ID, err)
			}
			path := fmt.Sprintf("%s/%03d_%s.md", folder, i+1, SanitizeFileName(doc.Filename))
			if err := writeEntry(zw, path, doc.Markdown, now); err != nil {
				return nil, err
			}
		}
		if err := writeEntry(zw, folder+"/"+CollectionSummaryName, collectionSummary(name, ranked, now), now); err != nil {
			return nil, err
		}

		stats.Notes += len(ranked)
		stats.Folders++
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return stats, nil
}

func writeEntry(zw *zip.Writer, name, body string, now time.Time) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: now,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.WriteString(fw, body); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// SanitizeFolderName replaces characters filesystems reject.
func SanitizeFolderName(name string) string {
	return strings.TrimSpace(forbiddenChars.ReplaceAllString(name, "_"))
}

// SanitizeFileName is SanitizeFolderName that also joins words with '_'.
func SanitizeFileName(name string) string {
	s := forbiddenChars.ReplaceAllString(name, "_")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, "_"))
}

// ExportFilename is the download name for an archive generated at now,
// e.g. somanynotes.com-export-2024-03-15.zip.
func ExportFilename(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultExportPrefix
	}
	return fmt.Sprintf("%s-export-%s.zip", prefix, now.UTC().Format(time.DateOnly))
}

func readme(now time.Time) string {
	return `# So Many Notes Export

This export contains your saved Nostr notes organized by collection.

## Structure

Each collection is stored in its own folder:
- ` + "`Default/`" + ` - Notes in the Default collection
- ` + "`[Collection Name]/`" + ` - Notes in custom collections

## File Format

Each note is saved as a Markdown (.md) file containing:
- Note metadata (author, dates, upvotes, etc.)
- Original content
- Full event JSON for reference
- Author metadata

## Import

These files can be:
- Read in any markdown editor
- Imported into note-taking apps
- Used as backup/archive
- Shared with others

Generated on: ` + now.UTC().Format(timestampLayout) + "\n"
}

// AuthorCount is one row of the top authors ranking.
type AuthorCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopAuthors counts notes per display name across every collection and
// returns the limit most frequent. Ties keep first-seen order.
func TopAuthors(in PackInput, limit int) []AuthorCount {
	var ranking []AuthorCount
	pos := make(map[string]int)
	for _, c := range in.Collections {
		for _, n := range in.Notes[c] {
			name := note.DisplayName(n.Author)
			if i, ok := pos[name]; ok {
				ranking[i].Count++
				continue
			}
			pos[name] = len(ranking)
			ranking = append(ranking, AuthorCount{Name: name, Count: 1})
		}
	}

	slices.SortStableFunc(ranking, func(a, b AuthorCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking
}

func summary(in PackInput, now time.Time) string {
	total := 0
	for _, c := range in.Collections {
		total += len(in.Notes[c])
	}
	sorted := slices.Clone(in.Collections)
	slices.Sort(sorted)

	var b strings.Builder
	b.WriteString("# Export Summary\n\n")
	fmt.Fprintf(&b, "**Total Notes:** %d\n", total)
	fmt.Fprintf(&b, "**Collections:** %d\n", len(in.Collections))
	fmt.Fprintf(&b, "**Export Date:** %s\n\n", now.UTC().Format(timestampLayout))

	b.WriteString("## Collections\n\n")
	lines := make([]string, len(sorted))
	for i, c := range sorted {
		lines[i] = fmt.Sprintf("- **%s:** %d notes", c, len(in.Notes[c]))
	}
	b.WriteString(strings.Join(lines, "\n"))

	b.WriteString("\n\n## Top Authors\n\n")
	authors := TopAuthors(in, topAuthorLimit)
	lines = make([]string, len(authors))
	for i, a := range authors {
		lines[i] = fmt.Sprintf("- **%s:** %d notes", a.Name, a.Count)
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	return b.String()
}

func collectionSummary(name string, ranked []note.Note, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Collection\n\n", name)
	fmt.Fprintf(&b, "**Total Notes:** %d\n", len(ranked))
	b.WriteString("**Created:** Various dates\n")
	fmt.Fprintf(&b, "**Last Updated:** %s\n\n", now.UTC().Format(timestampLayout))
	b.WriteString("## Notes in this Collection\n\n")

	items := make([]string, len(ranked))
	for i, n := range ranked {
		items[i] = fmt.Sprintf("%03d. **%s** (%d upvotes)\n     %s",
			i+1, note.DisplayName(n.Author), n.Upvotes, note.Preview(n.Event.Content, previewRunes))
	}
	b.WriteString(strings.Join(items, "\n\n"))
	b.WriteString("\n")
	return b.String()
}
