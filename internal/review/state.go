// Package review applies human review actions to stored verdicts.
package review

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/chatrisk/internal/verdict"
)

var (
	// ErrInvalidAction is returned for an unrecognized action; the verdict is
	// left untouched.
	ErrInvalidAction = errors.New("review: invalid action")
	// ErrMissingDate is returned when a request does not name its day.
	ErrMissingDate = errors.New("review: missing date")
)

// Action is a review transition.
type Action string

const (
	ActionSubmitAppeal Action = "submit_appeal"
	ActionConfirmRisk  Action = "confirm_risk"
	ActionApprove      Action = "admin_approve"
	ActionReject       Action = "admin_reject"
	ActionReset        Action = "admin_reset"
)

// ParseAction validates a raw action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.TrimSpace(s)); a {
	case ActionSubmitAppeal, ActionConfirmRisk, ActionApprove, ActionReject, ActionReset:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// Apply performs one transition on v. Checkpoints and highlight indices are
// never modified. Approving snapshots the score once; rejecting and resetting
// restore it from that snapshot.
func Apply(v *verdict.Verdict, action Action) error {
	if v == nil {
		return errors.New("review: nil verdict")
	}
	switch action {
	case ActionSubmitAppeal:
		v.ReviewStatus = verdict.ReviewPending
		v.ManualReviewed = true
	case ActionConfirmRisk:
		v.ReviewStatus = verdict.ReviewConfirmed
		v.IsRisk = true
		v.ManualReviewed = true
	case ActionApprove:
		if v.OriginalScore == nil {
			score := v.Score
			v.OriginalScore = &score
		}
		v.ReviewStatus = verdict.ReviewApproved
		v.IsRisk = false
		v.Score = verdict.MaxScore
		v.ManualReviewed = true
	case ActionReject:
		v.ReviewStatus = verdict.ReviewRejected
		restoreScore(v)
		v.ManualReviewed = true
	case ActionReset:
		v.ReviewStatus = verdict.ReviewNone
		v.ManualReviewed = false
		restoreScore(v)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	return nil
}

func restoreScore(v *verdict.Verdict) {
	if v.OriginalScore != nil {
		v.Score = *v.OriginalScore
	}
}
