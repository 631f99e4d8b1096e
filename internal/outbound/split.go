// Package outbound splits a reply into channel-size-safe fragments and sends
// them in order over the originating provider's transport.
package outbound

import "strings"

// DefaultFragmentLimit is the soft per-fragment size in runes.
const DefaultFragmentLimit = 300

// Split breaks text into fragments of at most limit runes. Paragraphs are
// kept whole when they fit; an oversized paragraph is split on sentence
// boundaries, sentences greedily packed. Joining the fragments reproduces
// the reply content modulo collapsed separators.
func Split(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 || runeLen(trimmed) <= limit {
		return []string{trimmed}
	}
	paragraphs := strings.Split(trimmed, "\n\n")
	fragments := make([]string, 0)
	buf := make([]string, 0, len(paragraphs))
	bufLen := 0
	for _, para := range paragraphs {
		paraLen := runeLen(para)
		sepLen := 0
		if len(buf) > 0 {
			sepLen = 2
		}
		if bufLen+sepLen+paraLen <= limit {
			buf = append(buf, para)
			bufLen += sepLen + paraLen
			continue
		}
		if len(buf) > 0 {
			fragments = append(fragments, strings.Join(buf, "\n\n"))
			buf = buf[:0]
			bufLen = 0
		}
		if paraLen <= limit {
			buf = append(buf, para)
			bufLen = paraLen
			continue
		}
		fragments = append(fragments, splitParagraph(para, limit)...)
	}
	if len(buf) > 0 {
		fragments = append(fragments, strings.Join(buf, "\n\n"))
	}
	return fragments
}

// splitParagraph packs sentences greedily into fragments of at most limit
// runes. A single sentence longer than the limit is hard-split on rune
// boundaries.
func splitParagraph(para string, limit int) []string {
	sentences := splitSentences(para)
	fragments := make([]string, 0)
	buf := make([]string, 0, len(sentences))
	bufLen := 0
	for _, sentence := range sentences {
		sentenceLen := runeLen(sentence)
		sepLen := 0
		if len(buf) > 0 {
			sepLen = 1
		}
		if bufLen+sepLen+sentenceLen <= limit {
			buf = append(buf, sentence)
			bufLen += sepLen + sentenceLen
			continue
		}
		if len(buf) > 0 {
			fragments = append(fragments, strings.Join(buf, " "))
			buf = buf[:0]
			bufLen = 0
		}
		if sentenceLen <= limit {
			buf = append(buf, sentence)
			bufLen = sentenceLen
			continue
		}
		fragments = append(fragments, hardSplit(sentence, limit)...)
	}
	if len(buf) > 0 {
		fragments = append(fragments, strings.Join(buf, " "))
	}
	return fragments
}

// splitSentences cuts text after terminal punctuation followed by
// whitespace. Text without terminal punctuation comes back as one sentence.
func splitSentences(text string) []string {
	runes := []rune(text)
	sentences := make([]string, 0)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		// Swallow a run of closing punctuation like "?!" or "...".
		end := i + 1
		for end < len(runes) && isTerminal(runes[end]) {
			end = end + 1
		}
		if end < len(runes) && runes[end] != ' ' && runes[end] != '\n' {
			i = end - 1
			continue
		}
		sentence := strings.TrimSpace(string(runes[start:end]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end
		i = end - 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func hardSplit(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	fragments := make([]string, 0)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		segment := strings.TrimSpace(string(runes[start:end]))
		if segment == "" {
			continue
		}
		fragments = append(fragments, segment)
	}
	return fragments
}

func runeLen(value string) int {
	return len([]rune(value))
}
