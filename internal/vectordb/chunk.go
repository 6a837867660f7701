package vectordb

import (
	"strings"
	"unicode/utf8"
)

// Chunker defaults.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// DefaultSeparators split on paragraphs, lines, then Chinese and Latin
// sentence ends, then spaces, and finally between characters.
var DefaultSeparators = []string{"\n\n", "\n", "。", "！", "？", "!", "?", " ", ""}

// Chunker splits text recursively: it uses the coarsest separator present,
// merges the pieces into chunks of at most Size characters with Overlap
// characters carried between neighbours, and recurses into pieces that are
// still too long with the finer separators.
type Chunker struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewChunker returns a Chunker with the default settings.
func NewChunker() *Chunker {
	return &Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text. Whitespace-only chunks are dropped.
func (c *Chunker) Split(text string) []string {
	size := c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := min(max(c.Overlap, 0), size-1)
	seps := c.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return c.split(text, seps, size, overlap)
}

func (c *Chunker) split(text string, seps []string, size, overlap int) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	var chunks, pending []string
	for _, piece := range splitKeep(text, sep) {
		if utf8.RuneCountInString(piece) < size {
			pending = append(pending, piece)
			continue
		}
		chunks = append(chunks, merge(pending, size, overlap)...)
		pending = nil
		if len(rest) == 0 {
			chunks = append(chunks, strings.TrimSpace(piece))
		} else {
			chunks = append(chunks, c.split(piece, rest, size, overlap)...)
		}
	}
	return append(chunks, merge(pending, size, overlap)...)
}

// splitKeep splits text after every sep, keeping sep on the left piece.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	return strings.SplitAfter(text, sep)
}

// merge packs pieces into chunks no longer than size, starting each new
// chunk with up to overlap characters from the tail of the previous one.
func merge(pieces []string, size, overlap int) []string {
	var out, window []string
	total := 0
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > size && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
				out = append(out, chunk)
			}
			for total > overlap || (total+n > size && total > 0) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
		out = append(out, chunk)
	}
	return out
}
