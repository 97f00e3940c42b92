// Package chunker splits extracted document text into retrieval-sized
// fragments. Splitting is deterministic: identical input always yields
// identical chunks.
package chunker

import (
	"regexp"
	"strings"
)

// Chunk is one output fragment. Index is 0-based in document order.
type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

// Chunker splits text targeting Size tokens per chunk with Overlap tokens
// carried between consecutive chunks. No chunk exceeds 1.5× the target.
type Chunker struct {
	size    int
	overlap int
	count   TokenCounter
}

// hardCapFactor bounds chunk size relative to the target.
const hardCapFactor = 1.5

// New creates a chunker. Overlap is clamped below size; a nil counter uses
// the byte approximation.
func New(size, overlap int, count TokenCounter) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	if count == nil {
		count = ApproxTokenCounter
	}
	return &Chunker{size: size, overlap: overlap, count: count}
}

var (
	paragraphSplit = regexp.MustCompile(`\n{2,}`)
	sentenceEnd    = regexp.MustCompile(`([.!?])\s+`)
	orderedItem    = regexp.MustCompile(`^\d+[.)] `)
)

// Split chunks the text. Boundary preference: structural breaks (headings,
// list items, table rows), then paragraph breaks, then sentence ends. A
// single segment larger than the hard cap is force-split by tokens.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	segments := c.segment(text)
	hardCap := int(float64(c.size) * hardCapFactor)

	var chunks []Chunk
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(current, "\n\n"))
		if content == "" {
			current = nil
			currentTokens = 0
			return
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Content:    content,
			TokenCount: c.count(content),
		})

		// Seed the next chunk with trailing segments up to the overlap
		// budget so context carries across the boundary.
		var carry []string
		carried := 0
		for i := len(current) - 1; i >= 0 && carried < c.overlap; i-- {
			carry = append([]string{current[i]}, carry...)
			carried += c.count(current[i])
		}
		if carried >= currentTokens {
			// Overlap would reproduce the whole chunk; start clean.
			carry = nil
			carried = 0
		}
		current = carry
		currentTokens = carried
	}

	for _, seg := range segments {
		segTokens := c.count(seg)

		// Headings start a fresh chunk with no overlap seed.
		if currentTokens > 0 && isHeading(seg) {
			flush()
			current = nil
			currentTokens = 0
		}

		// A single oversized segment gets force-split so the hard cap holds.
		if segTokens > hardCap {
			flush()
			for _, piece := range c.forceSplit(seg) {
				chunks = append(chunks, Chunk{
					Index:      len(chunks),
					Content:    piece,
					TokenCount: c.count(piece),
				})
			}
			current = nil
			currentTokens = 0
			continue
		}

		if currentTokens > 0 && currentTokens+segTokens > c.size {
			flush()
		}
		current = append(current, seg)
		currentTokens += segTokens
	}
	flush()

	return chunks
}

// segment splits text into ordered pieces at structural and paragraph
// boundaries; paragraphs still above the target are split at sentence ends.
func (c *Chunker) segment(text string) []string {
	var segments []string
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, block := range splitStructural(para) {
			if c.count(block) <= c.size {
				segments = append(segments, block)
				continue
			}
			segments = append(segments, c.splitSentences(block)...)
		}
	}
	return segments
}

// splitStructural breaks a paragraph at heading, list, and table boundaries.
// Runs of same-kind lines (list items, table rows) stay together.
func splitStructural(para string) []string {
	lines := strings.Split(para, "\n")
	if len(lines) == 1 {
		return []string{para}
	}

	var blocks []string
	var current []string
	currentKind := ""

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range lines {
		kind := lineKind(line)
		// Headings always start a fresh block; other kind changes split too.
		if kind == "heading" || kind != currentKind {
			flush()
			currentKind = kind
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

func isHeading(seg string) bool {
	first := seg
	if i := strings.IndexByte(seg, '\n'); i >= 0 {
		first = seg[:i]
	}
	return lineKind(first) == "heading"
}

func lineKind(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "#"):
		return "heading"
	case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "),
		orderedItem.MatchString(trimmed):
		return "list"
	case strings.HasPrefix(trimmed, "|"):
		return "table"
	default:
		return "text"
	}
}

// splitSentences greedily packs sentences up to the target size.
func (c *Chunker) splitSentences(block string) []string {
	marked := sentenceEnd.ReplaceAllString(block, "$1\x00")
	sentences := strings.Split(marked, "\x00")

	var out []string
	var current []string
	currentTokens := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		tokens := c.count(s)
		if currentTokens > 0 && currentTokens+tokens > c.size {
			out = append(out, strings.Join(current, " "))
			current = nil
			currentTokens = 0
		}
		current = append(current, s)
		currentTokens += tokens
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// forceSplit cuts an unbreakable segment into target-sized pieces on rune
// boundaries, approximating tokens by the counter's density on the segment.
func (c *Chunker) forceSplit(seg string) []string {
	runes := []rune(seg)
	total := c.count(seg)
	if total == 0 {
		return nil
	}
	runesPerToken := len(runes) / total
	if runesPerToken < 1 {
		runesPerToken = 1
	}
	step := c.size * runesPerToken

	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+step, len(runes))
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
