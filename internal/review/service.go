package review

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/chatrisk/internal/compliance"
	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/internal/observability/metrics"
	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/internal/verdict"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

// Store is the part of daystore.Store the service needs.
type Store interface {
	Update(ctx context.Context, date, id string, fn func(*transcript.Conversation) error) error
}

// AuditLogger records applied transitions.
type AuditLogger interface {
	LogReview(ctx context.Context, event compliance.ReviewEvent) error
}

// Request is one review action against one conversation.
type Request struct {
	ConversationID string `json:"id"`
	Action         string `json:"action"`
	Date           string `json:"date"`
}

// Service applies review actions under the day lock and persists the result.
type Service struct {
	store   Store
	audit   AuditLogger
	metrics *metrics.ReviewMetrics
	logger  *logging.Logger
}

func NewService(store Store, audit AuditLogger, m *metrics.ReviewMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, audit: audit, metrics: m, logger: logger}
}

// Review validates req, applies the action and writes the day back. Request
// errors are reported before any storage access.
func (s *Service) Review(ctx context.Context, req Request) (*verdict.Verdict, error) {
	date := strings.TrimSpace(req.Date)
	if date == "" {
		s.metrics.ObserveTransition(req.Action, "invalid")
		return nil, ErrMissingDate
	}
	if err := daystore.ValidateDate(date); err != nil {
		s.metrics.ObserveTransition(req.Action, "invalid")
		return nil, err
	}
	action, err := ParseAction(req.Action)
	if err != nil {
		s.metrics.ObserveTransition("unknown", "invalid")
		return nil, err
	}

	var before, after *verdict.Verdict
	err = s.store.Update(ctx, date, req.ConversationID, func(c *transcript.Conversation) error {
		if c.Analysis == nil {
			c.Analysis = verdict.Empty()
		}
		before = c.Analysis.Clone()
		if err := Apply(c.Analysis, action); err != nil {
			return err
		}
		after = c.Analysis.Clone()
		return nil
	})
	if err != nil {
		s.metrics.ObserveTransition(string(action), resultLabel(err))
		s.logger.Warn("review action failed",
			"conversation_id", req.ConversationID,
			"date", date,
			"action", action,
			"error", err,
		)
		return nil, err
	}
	s.metrics.ObserveTransition(string(action), "success")

	s.logger.Info("review action applied",
		"conversation_id", req.ConversationID,
		"date", date,
		"action", action,
		"from_status", string(before.ReviewStatus),
		"to_status", string(after.ReviewStatus),
		"score", after.Score,
	)

	if s.audit != nil {
		event := compliance.ReviewEvent{
			ConversationID: req.ConversationID,
			Day:            date,
			Action:         string(action),
			FromStatus:     string(before.ReviewStatus),
			ToStatus:       string(after.ReviewStatus),
			ScoreBefore:    before.Score,
			ScoreAfter:     after.Score,
		}
		// The day file is already written; a failed audit insert is logged, not returned.
		if err := s.audit.LogReview(ctx, event); err != nil {
			s.logger.Error("failed to record review audit event", "conversation_id", req.ConversationID, "error", err)
		}
	}
	return after, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, daystore.ErrConversationNotFound), errors.Is(err, daystore.ErrDayNotFound):
		return "not_found"
	case errors.Is(err, daystore.ErrLockTimeout):
		return "lock_timeout"
	default:
		return "error"
	}
}
