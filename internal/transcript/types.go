// Package transcript turns raw chat records into canonical utterances and
// compact, index-preserving transcripts.
package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolfman30/chatrisk/internal/verdict"
)

// ErrMalformedRecord indicates a source record that cannot be decoded.
var ErrMalformedRecord = errors.New("transcript: malformed record")

// Sender is the canonical role of an utterance.
type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderAgent    Sender = "agent"
	SenderSystem   Sender = "system"
)

// Raw sender and type values produced by the chat export.
const (
	rawSenderSystem = "System"
	rawTypeSystem   = "system"
	rawTypeImage    = "image"
)

// RawMessage is one message as exported from the chat platform.
type RawMessage struct {
	Time    string `json:"time"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// Utterance is the canonical, immutable form of a message.
type Utterance struct {
	Sender        Sender
	Text          string
	Time          string
	OriginalIndex int
	Image         bool
}

// ID is a conversation identifier. Exports carry it either as a JSON string
// or as a bare number; both decode to the same textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("transcript: conversation id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Conversation is one record of a per-day collection. Top-level fields this
// package does not know about are kept in Extra and written back unchanged.
type Conversation struct {
	ID           ID               `json:"id"`
	Info         string           `json:"info,omitempty"`
	Date         string           `json:"date,omitempty"`
	CustomerName string           `json:"customer_name,omitempty"`
	LastTime     string           `json:"last_time,omitempty"`
	Messages     []RawMessage     `json:"messages"`
	Analysis     *verdict.Verdict `json:"ai_analysis,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownConversationKeys = []string{"id", "info", "date", "customer_name", "last_time", "messages", "ai_analysis"}

type conversationAlias Conversation

func (c Conversation) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(conversationAlias(c))
	if err != nil || len(c.Extra) == 0 {
		return data, err
	}
	merged := make(map[string]json.RawMessage, len(c.Extra)+len(knownConversationKeys))
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (c *Conversation) UnmarshalJSON(data []byte) error {
	var alias conversationAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownConversationKeys {
		delete(all, k)
	}
	*c = Conversation(alias)
	if len(all) > 0 {
		c.Extra = all
	}
	return nil
}

// DecodeDay decodes a day collection. Exports sometimes hold a single object
// instead of an array; both forms are accepted.
func DecodeDay(data []byte) ([]Conversation, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedRecord)
	}
	if trimmed[0] == '{' {
		var one Conversation
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return []Conversation{one}, nil
	}
	var all []Conversation
	if err := json.Unmarshal(trimmed, &all); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return all, nil
}

// EncodeDay renders a day collection the way the dashboard expects it.
func EncodeDay(convs []Conversation) ([]byte, error) {
	if convs == nil {
		convs = []Conversation{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(convs); err != nil {
		return nil, fmt.Errorf("transcript: encode day: %w", err)
	}
	return buf.Bytes(), nil
}

func roleTag(s Sender) string {
	switch s {
	case SenderAgent:
		return "客服"
	case SenderCustomer:
		return "用户"
	default:
		return "系统"
	}
}

