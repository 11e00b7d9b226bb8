// Package compliance keeps an immutable audit trail of human review actions.
package compliance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReviewEvent records one applied review action.
type ReviewEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Day            string    `json:"day"`
	Action         string    `json:"action"`
	FromStatus     string    `json:"from_status,omitempty"`
	ToStatus       string    `json:"to_status,omitempty"`
	ScoreBefore    int       `json:"score_before"`
	ScoreAfter     int       `json:"score_after"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditService writes review events to Postgres. A service without a
// database accepts and drops every event, so the review server runs without
// DATABASE_URL.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// Enabled reports whether events are persisted.
func (s *AuditService) Enabled() bool {
	return s != nil && s.db != nil
}

// LogReview records a review event.
func (s *AuditService) LogReview(ctx context.Context, event ReviewEvent) error {
	if !s.Enabled() {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO review_audit_events (
			id, conversation_id, day, action, from_status,
			to_status, score_before, score_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.ConversationID,
		event.Day,
		event.Action,
		nullString(event.FromStatus),
		nullString(event.ToStatus),
		event.ScoreBefore,
		event.ScoreAfter,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log review event: %w", err)
	}
	return nil
}

// AuditFilter specifies criteria for querying review events.
type AuditFilter struct {
	Day            string
	ConversationID string
	Action         string
	Limit          int
	Offset         int
}

// QueryEvents lists review events, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]ReviewEvent, error) {
	if !s.Enabled() {
		return nil, nil
	}

	query := `
		SELECT id, conversation_id, day, action, from_status,
			   to_status, score_before, score_after, created_at
		FROM review_audit_events
		WHERE 1 = 1
	`
	var args []any
	argIdx := 1

	if filter.Day != "" {
		query += fmt.Sprintf(" AND day = $%d", argIdx)
		args = append(args, filter.Day)
		argIdx++
	}
	if filter.ConversationID != "" {
		query += fmt.Sprintf(" AND conversation_id = $%d", argIdx)
		args = append(args, filter.ConversationID)
		argIdx++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, filter.Action)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query review events: %w", err)
	}
	defer rows.Close()

	var events []ReviewEvent
	for rows.Next() {
		var e ReviewEvent
		var fromStatus, toStatus sql.NullString
		if err := rows.Scan(
			&e.ID, &e.ConversationID, &e.Day, &e.Action, &fromStatus,
			&toStatus, &e.ScoreBefore, &e.ScoreAfter, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan review event: %w", err)
		}
		e.FromStatus = fromStatus.String
		e.ToStatus = toStatus.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to read review events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
