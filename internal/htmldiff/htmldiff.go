// Package htmldiff implements HtmlDiffer: a deterministic, DOM-aware
// comparison between two HTML documents. It locates textual additions
// and removals and tags each with an approximate DOM path, without
// ever raising on malformed input.
package htmldiff

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

// Stats holds aggregate counts for a comparison.
type Stats struct {
	AddedChars      int
	RemovedChars    int
	ChangePercent   float64
}

// Result is the full output of a Diff call.
type Result struct {
	Records []domain.ChangeRecord
	Stats   Stats
}

// skipTags lists elements whose content never participates in the
// comparison.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true, "iframe": true,
}

type block struct {
	text string
	path string
}

// Diff computes the ordered list of added/removed blocks between before
// and after, plus aggregate stats. It is deterministic: identical inputs
// always produce identical output, including ordering.
func Diff(before, after string) Result {
	oldBlocks := walk(before)
	newBlocks := walk(after)

	if len(oldBlocks) == 0 && len(newBlocks) == 0 {
		// Degenerate/opaque input (e.g. not really HTML at all). Fall
		// back to treating both sides as plain text lines.
		return diffText(before, after)
	}

	oldSet := make(map[string]bool, len(oldBlocks))
	newSet := make(map[string]bool, len(newBlocks))
	for _, b := range oldBlocks {
		oldSet[b.text] = true
	}
	for _, b := range newBlocks {
		newSet[b.text] = true
	}

	var records []domain.ChangeRecord
	var stats Stats
	seenRemoved := make(map[string]bool)
	for _, b := range oldBlocks {
		if newSet[b.text] || seenRemoved[b.text] {
			continue
		}
		seenRemoved[b.text] = true
		records = append(records, domain.ChangeRecord{Kind: domain.RecordRemoved, Value: b.text, PathHint: b.path})
		stats.RemovedChars += len(b.text)
	}
	seenAdded := make(map[string]bool)
	for _, b := range newBlocks {
		if oldSet[b.text] || seenAdded[b.text] {
			continue
		}
		seenAdded[b.text] = true
		records = append(records, domain.ChangeRecord{Kind: domain.RecordAdded, Value: b.text, PathHint: b.path})
		stats.AddedChars += len(b.text)
	}

	stats.ChangePercent = percent(stats.AddedChars+stats.RemovedChars, len(before))
	return Result{Records: records, Stats: stats}
}

func percent(changed, baseLen int) float64 {
	denom := baseLen
	if denom < 1 {
		denom = 1
	}
	return float64(changed) / float64(denom) * 100
}

// diffText is the opaque-text fallback: a set-based line diff, for input
// that didn't even parse as HTML (walk returned no blocks on either
// side).
func diffText(before, after string) Result {
	if before == after {
		return Result{}
	}
	oldLines := strings.Split(before, "\n")
	newLines := strings.Split(after, "\n")
	oldSet := make(map[string]bool, len(oldLines))
	newSet := make(map[string]bool, len(newLines))
	for _, l := range oldLines {
		oldSet[l] = true
	}
	for _, l := range newLines {
		newSet[l] = true
	}

	var records []domain.ChangeRecord
	var stats Stats
	for _, l := range oldLines {
		if l == "" || newSet[l] {
			continue
		}
		records = append(records, domain.ChangeRecord{Kind: domain.RecordRemoved, Value: l})
		stats.RemovedChars += len(l)
	}
	for _, l := range newLines {
		if l == "" || oldSet[l] {
			continue
		}
		records = append(records, domain.ChangeRecord{Kind: domain.RecordAdded, Value: l})
		stats.AddedChars += len(l)
	}
	stats.ChangePercent = percent(stats.AddedChars+stats.RemovedChars, len(before))
	return Result{Records: records, Stats: stats}
}

// maxReplayCells bounds the LCS table ReplayOps builds. Past this, the
// O(n*m) table is too expensive to compute on every capture; the caller
// should fall back to storing a full snapshot instead of a differential
// one.
const maxReplayCells = 4_000_000

// ReplayOps computes the ordered kept/added line sequence that
// reconstructs after exactly (modulo whitespace — lines are compared
// verbatim, not normalized) from before. Unlike Diff, whose Records are
// an unordered add/remove set good for classification, ReplayOps keeps
// every kept line in place so replaying the sequence in order losslessly
// rebuilds after: join every op's Value with "\n". ok is false when the
// input is too large to diff at this cost; callers should store a full
// snapshot instead.
func ReplayOps(before, after string) (ops []domain.ChangeRecord, ok bool) {
	if before == after {
		return []domain.ChangeRecord{{Kind: domain.RecordKept, Value: after}}, true
	}

	oldLines := strings.Split(before, "\n")
	newLines := strings.Split(after, "\n")
	if len(oldLines)*len(newLines) > maxReplayCells {
		return nil, false
	}

	pairs := lcsPairs(oldLines, newLines)

	ops = make([]domain.ChangeRecord, 0, len(newLines))
	j := 0
	for _, p := range pairs {
		for j < p.j {
			ops = append(ops, domain.ChangeRecord{Kind: domain.RecordAdded, Value: newLines[j]})
			j++
		}
		ops = append(ops, domain.ChangeRecord{Kind: domain.RecordKept, Value: newLines[j]})
		j++
	}
	for j < len(newLines) {
		ops = append(ops, domain.ChangeRecord{Kind: domain.RecordAdded, Value: newLines[j]})
		j++
	}
	return ops, true
}

// ReplayHTML reassembles the HTML ReplayOps describes.
func ReplayHTML(ops []domain.ChangeRecord) string {
	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Kind == domain.RecordKept || op.Kind == domain.RecordAdded {
			lines = append(lines, op.Value)
		}
	}
	return strings.Join(lines, "\n")
}

type linePair struct{ i, j int }

// lcsPairs returns the longest common subsequence between a and b as
// matched index pairs, in order. Standard dynamic-programming LCS,
// computed backward so the recurrence reads forward during backtracking.
func lcsPairs(a, b []string) []linePair {
	n, m := len(a), len(b)
	table := make([][]int32, n+1)
	for i := range table {
		table[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				table[i][j] = table[i+1][j+1] + 1
			} else if table[i+1][j] >= table[i][j+1] {
				table[i][j] = table[i+1][j]
			} else {
				table[i][j] = table[i][j+1]
			}
		}
	}

	var pairs []linePair
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			pairs = append(pairs, linePair{i, j})
			i++
			j++
		case table[i+1][j] >= table[i][j+1]:
			i++
		default:
			j++
		}
	}
	return pairs
}

// walk parses htmlContent and returns its leaf text blocks in document
// order, each tagged with a DOM path hint.
func walk(htmlContent string) []block {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}
	var blocks []block
	var visit func(n *html.Node, path []string)
	visit = func(n *html.Node, path []string) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			path = append(path, elementToken(n))
		}
		if n.Type == html.TextNode {
			text := normalizeWhitespace(n.Data)
			if text != "" {
				blocks = append(blocks, block{text: text, path: strings.Join(path, ">")})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, path)
		}
	}
	visit(doc, nil)
	return blocks
}

// elementToken renders a single path-hint segment for an element,
// preferring an id, then classes, falling back to the bare tag name.
func elementToken(n *html.Node) string {
	var id, classes string
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			id = a.Val
		case "class":
			classes = a.Val
		}
	}
	if id != "" {
		return fmt.Sprintf("%s#%s", n.Data, id)
	}
	if classes != "" {
		fields := strings.Fields(classes)
		if len(fields) > 0 {
			return fmt.Sprintf("%s.%s", n.Data, strings.Join(fields, "."))
		}
	}
	return n.Data
}

// normalizeWhitespace collapses runs of whitespace to a single space and
// trims the result, giving a stable basis for comparison regardless of
// source formatting differences.
func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
