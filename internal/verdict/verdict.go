// Package verdict defines the persisted risk record shared by the scoring
// pipeline and the review workflow.
package verdict

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Category classifies where a checkpoint came from. Values are the labels the
// review dashboard already renders, so existing day files stay readable.
type Category string

const (
	CategoryAgentMisconduct          Category = "客服风险"
	CategoryCustomerQualityComplaint Category = "品质反馈"
	CategoryCustomerServiceComplaint Category = "服务投诉"
	CategorySystemHeuristic          Category = "服务预警"
)

// DeductionEligible reports whether checkpoints of this category count toward
// the rule-based score. Customer feedback is signal for reviewers only.
func (c Category) DeductionEligible() bool {
	return c == CategoryAgentMisconduct || c == CategorySystemHeuristic
}

// ReviewStatus is the human review disposition. The zero value is None and
// is stored as JSON null.
type ReviewStatus string

const (
	ReviewNone      ReviewStatus = ""
	ReviewPending   ReviewStatus = "pending"
	ReviewConfirmed ReviewStatus = "confirmed"
	ReviewApproved  ReviewStatus = "approved"
	ReviewRejected  ReviewStatus = "rejected"
)

func (s ReviewStatus) MarshalJSON() ([]byte, error) {
	if s == ReviewNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *ReviewStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = ReviewNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("verdict: review status: %w", err)
	}
	// Statuses written by other tools are kept verbatim so one odd record
	// cannot make its whole day unreadable.
	*s = ReviewStatus(raw)
	return nil
}

// Checkpoint is one recorded violation. Checkpoints are an append-only audit
// trail; nothing removes them once a verdict is stored.
type Checkpoint struct {
	Point  int      `json:"point"`
	Type   Category `json:"type"`
	Reason string   `json:"reason"`
	Text   string   `json:"text"`
}

// Verdict is the conversation-level risk record embedded in a conversation.
type Verdict struct {
	Score            int          `json:"score"`
	IsRisk           bool         `json:"is_risk"`
	Summary          string       `json:"summary"`
	Checkpoints      []Checkpoint `json:"checkpoints"`
	HighlightIndices []int        `json:"highlight_indices"`
	ReviewStatus     ReviewStatus `json:"review_status"`
	ManualReviewed   bool         `json:"manual_reviewed"`
	OriginalScore    *int         `json:"original_score,omitempty"`
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Clone returns a deep copy.
func (v *Verdict) Clone() *Verdict {
	if v == nil {
		return nil
	}
	out := *v
	if v.Checkpoints != nil {
		out.Checkpoints = append([]Checkpoint(nil), v.Checkpoints...)
	}
	if v.HighlightIndices != nil {
		out.HighlightIndices = append([]int(nil), v.HighlightIndices...)
	}
	if v.OriginalScore != nil {
		orig := *v.OriginalScore
		out.OriginalScore = &orig
	}
	return &out
}

// Empty returns a clean, non-risky verdict with a perfect score.
func Empty() *Verdict {
	return &Verdict{
		Score:            MaxScore,
		Checkpoints:      []Checkpoint{},
		HighlightIndices: []int{},
	}
}
