package transcript

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// LinkPlaceholder replaces URL-shaped substrings in compacted text.
	LinkPlaceholder = "[链接]"
	// ImagePlaceholder stands in for image messages, whose content is a URL.
	ImagePlaceholder = "[图片]"

	greetingMaxRunes = 15
)

var (
	urlRe       = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
	lineBreakRe = regexp.MustCompile(`[\r\n\x{2028}\x{2029}]+`)
	greetingRe  = regexp.MustCompile(`(?i)^(您好|你好|亲[，,!！~～]?|在的|在呢|欢迎光临|很高兴为您服务|hi\b|hello\b)`)
)

// IndexMap maps dense visible line numbers back to original message indices.
type IndexMap struct {
	originals []int
}

// Len is the number of visible lines.
func (m IndexMap) Len() int { return len(m.originals) }

// Original returns the original index for a visible line number.
func (m IndexMap) Original(visible int) (int, bool) {
	if visible < 0 || visible >= len(m.originals) {
		return 0, false
	}
	return m.originals[visible], true
}

// Remap converts visible line numbers into original indices. Numbers that are
// not in the map are dropped; duplicates keep their first position.
func (m IndexMap) Remap(visible []int) []int {
	out := make([]int, 0, len(visible))
	seen := make(map[int]struct{}, len(visible))
	for _, v := range visible {
		orig, ok := m.Original(v)
		if !ok {
			continue
		}
		if _, dup := seen[orig]; dup {
			continue
		}
		seen[orig] = struct{}{}
		out = append(out, orig)
	}
	return out
}

// Compaction is the dense transcript handed to the external classifier.
type Compaction struct {
	Text  string
	Index IndexMap
}

// Compact filters utterances down to the lines worth classifying and numbers
// them densely from 0. ok is false when nothing survives, in which case the
// conversation should be skipped rather than sent out.
func Compact(utts []Utterance) (*Compaction, bool) {
	var (
		lines     []string
		originals []int
	)
	for _, u := range utts {
		if u.Sender == SenderSystem {
			continue
		}
		text := compactText(u)
		if text == "" {
			continue
		}
		if u.Sender == SenderAgent && isBoilerplateGreeting(text) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. [%s]: %s", len(lines), roleTag(u.Sender), text))
		originals = append(originals, u.OriginalIndex)
	}
	if len(lines) == 0 {
		return nil, false
	}
	return &Compaction{
		Text:  strings.Join(lines, "\n"),
		Index: IndexMap{originals: originals},
	}, true
}

func compactText(u Utterance) string {
	if u.Image {
		if strings.TrimSpace(u.Text) == "" {
			return ""
		}
		return ImagePlaceholder
	}
	text := urlRe.ReplaceAllString(u.Text, LinkPlaceholder)
	text = lineBreakRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func isBoilerplateGreeting(text string) bool {
	return utf8.RuneCountInString(text) <= greetingMaxRunes && greetingRe.MatchString(text)
}
