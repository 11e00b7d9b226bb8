package transcript

import (
	"strings"
)

const defaultTime = "00:00"

// ClassifySender maps a raw message onto the three canonical roles. Anything
// that is not clearly a customer or an agent is treated as system noise so it
// is never scored.
func ClassifySender(m RawMessage) Sender {
	sender := strings.TrimSpace(m.Sender)
	if strings.EqualFold(m.Type, rawTypeSystem) || sender == rawSenderSystem {
		return SenderSystem
	}
	switch strings.ToLower(sender) {
	case "service", "agent":
		return SenderAgent
	case "user", "customer":
		return SenderCustomer
	default:
		return SenderSystem
	}
}

// CanonicalTime carries the previous valid time forward over blanks and
// truncates everything else to HH:MM.
func CanonicalTime(raw, previous string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if previous == "" {
			return defaultTime
		}
		return previous
	}
	runes := []rune(raw)
	if len(runes) > 5 {
		runes = runes[:5]
	}
	return string(runes)
}

// Normalize produces one Utterance per raw message, in order. Messages are
// never dropped; downstream stages decide what to ignore.
func Normalize(msgs []RawMessage) []Utterance {
	out := make([]Utterance, 0, len(msgs))
	last := defaultTime
	for i, m := range msgs {
		t := CanonicalTime(m.Time, last)
		last = t
		out = append(out, Utterance{
			Sender:        ClassifySender(m),
			Text:          strings.TrimSpace(m.Content),
			Time:          t,
			OriginalIndex: i,
			Image:         strings.EqualFold(m.Type, rawTypeImage),
		})
	}
	return out
}
