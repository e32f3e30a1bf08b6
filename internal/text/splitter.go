// Package text splits long document content into chunks that fit an
// embedding model's input.
package text

import (
	"maps"
	"regexp"
	"strings"

	"flowkit/internal/schema"
)

// ChunkIndexKey is set on the metadata of every chunk produced by SplitDocuments.
const ChunkIndexKey = "chunk_index"

var (
	fenceRe   = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[[:space:]]*\\n(.*?)\\n[[:space:]]*```")
	headingRe = regexp.MustCompile(`(?m)^#{1,6}\s`)
)

var proseSeparators = []string{"\n\n", "\n", " "}

// Split breaks content into chunks of at most size bytes, cutting at
// markdown headings first, then blank lines, line breaks and spaces.
// Fenced code blocks stay whole when they fit; larger ones are split by
// line and re-fenced. A single word longer than size is kept intact.
// A non-positive size disables splitting.
func Split(content string, size int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if size <= 0 || len(content) <= size {
		return []string{content}
	}

	var out []string
	last := 0
	for _, m := range fenceRe.FindAllStringSubmatchIndex(content, -1) {
		out = append(out, splitProse(content[last:m[0]], size)...)
		lang := ""
		if m[2] != -1 {
			lang = content[m[2]:m[3]]
		}
		out = append(out, splitCode(lang, content[m[4]:m[5]], size)...)
		last = m[1]
	}
	return append(out, splitProse(content[last:], size)...)
}

// SplitDocuments splits every document's content with Split. Each chunk
// carries a copy of its document's metadata plus its position. Documents
// that fit are passed through unchanged.
func SplitDocuments(docs []schema.Document, size int) []schema.Document {
	if size <= 0 {
		return docs
	}
	out := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		chunks := Split(doc.PageContent, size)
		if len(chunks) <= 1 {
			out = append(out, doc)
			continue
		}
		for i, chunk := range chunks {
			meta := make(map[string]any, len(doc.Metadata)+1)
			maps.Copy(meta, doc.Metadata)
			meta[ChunkIndexKey] = i
			out = append(out, schema.Document{PageContent: chunk, Metadata: meta})
		}
	}
	return out
}

func splitProse(text string, size int) []string {
	var out []string
	for _, section := range splitHeadings(text) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		out = append(out, pack(section, size, proseSeparators)...)
	}
	return out
}

func splitHeadings(text string) []string {
	var sections []string
	last := 0
	for _, loc := range headingRe.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			sections = append(sections, text[last:loc[0]])
		}
		last = loc[0]
	}
	if last < len(text) {
		sections = append(sections, text[last:])
	}
	return sections
}

// pack joins the parts of text split on seps[0] into chunks no larger than
// size, descending to the next separator for parts that are still too long.
func pack(text string, size int, seps []string) []string {
	if len(text) <= size || len(seps) == 0 {
		return []string{text}
	}
	sep := seps[0]

	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, part := range strings.Split(text, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(part) > size {
			flush()
			out = append(out, pack(part, size, seps[1:])...)
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(sep)+len(part) > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(part)
	}
	flush()
	return out
}

func splitCode(lang, code string, size int) []string {
	open, close := "```"+lang+"\n", "\n```"
	if full := open + code + close; len(full) <= size {
		return []string{full}
	}
	budget := size - len(open) - len(close)

	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(code, "\n") {
		if cur.Len() > 0 && cur.Len()+1+len(line) > budget {
			out = append(out, open+cur.String()+close)
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		out = append(out, open+cur.String()+close)
	}
	return out
}
