package utils

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// ChunkText splits text into chunks of at most limit characters, preferring
// sentence boundaries so each chunk is independently speakable. Oversized
// sentences are hard-split at the limit.
func ChunkText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = 3000
	}
	if len(text) <= limit {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	current := ""
	for _, sent := range sentences {
		switch {
		case current == "":
			current = sent
		case len(current)+1+len(sent) <= limit:
			current += " " + sent
		default:
			chunks = append(chunks, current)
			current = sent
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	var final []string
	for _, ch := range chunks {
		if len(ch) <= limit {
			final = append(final, ch)
			continue
		}
		for i := 0; i < len(ch); i += limit {
			end := i + limit
			if end > len(ch) {
				end = len(ch)
			}
			final = append(final, ch[i:end])
		}
	}
	return final
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace, keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}
