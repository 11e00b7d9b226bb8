package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_LogReview(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	tests := []struct {
		name    string
		event   ReviewEvent
		execErr error
		wantErr bool
	}{
		{
			name: "approve",
			event: ReviewEvent{
				ConversationID: "7390012",
				Day:            "2026-01-13",
				Action:         "admin_approve",
				FromStatus:     "pending",
				ToStatus:       "approved",
				ScoreBefore:    50,
				ScoreAfter:     100,
			},
		},
		{
			name: "reset to none",
			event: ReviewEvent{
				ConversationID: "7390012",
				Day:            "2026-01-13",
				Action:         "admin_reset",
				FromStatus:     "approved",
				ScoreBefore:    100,
				ScoreAfter:     50,
			},
		},
		{
			name:    "database error",
			event:   ReviewEvent{ConversationID: "x", Day: "2026-01-13", Action: "confirm_risk"},
			execErr: errors.New("connection refused"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := mock.ExpectExec("INSERT INTO review_audit_events").
				WithArgs(sqlmock.AnyArg(), tt.event.ConversationID, tt.event.Day, tt.event.Action,
					sqlmock.AnyArg(), sqlmock.AnyArg(), tt.event.ScoreBefore, tt.event.ScoreAfter, sqlmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(1, 1))
			}

			err := service.LogReview(context.Background(), tt.event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_Disabled(t *testing.T) {
	var nilService *AuditService
	assert.NoError(t, nilService.LogReview(context.Background(), ReviewEvent{}))

	service := NewAuditService(nil)
	assert.False(t, service.Enabled())
	assert.NoError(t, service.LogReview(context.Background(), ReviewEvent{Action: "admin_reset"}))
	events, err := service.QueryEvents(context.Background(), AuditFilter{})
	assert.NoError(t, err)
	assert.Nil(t, events)
}

func TestAuditService_QueryEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "conversation_id", "day", "action", "from_status",
		"to_status", "score_before", "score_after", "created_at",
	}).
		AddRow("e2", "c1", "2026-01-13", "admin_reset", "approved", nil, 100, 50, now).
		AddRow("e1", "c1", "2026-01-13", "admin_approve", nil, "approved", 50, 100, now.Add(-time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM review_audit_events").
		WithArgs("2026-01-13", "c1").
		WillReturnRows(rows)

	events, err := service.QueryEvents(context.Background(), AuditFilter{Day: "2026-01-13", ConversationID: "c1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "admin_reset", events[0].Action)
	assert.Equal(t, "", events[0].ToStatus)
	assert.Equal(t, "", events[1].FromStatus)
	assert.Equal(t, 50, events[1].ScoreBefore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_QueryEventsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM review_audit_events").WillReturnError(errors.New("timeout"))
	_, err = NewAuditService(db).QueryEvents(context.Background(), AuditFilter{})
	assert.ErrorContains(t, err, "failed to query review events")
}
