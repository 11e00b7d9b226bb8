package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/chatrisk/internal/compliance"
	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/internal/review"
	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/internal/verdict"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

const maxReviewBodyBytes = 64 << 10

// DayReader is the read side of daystore.Store.
type DayReader interface {
	Dates(ctx context.Context) ([]string, error)
	Load(ctx context.Context, date string) ([]transcript.Conversation, error)
}

// Reviewer applies review actions.
type Reviewer interface {
	Review(ctx context.Context, req review.Request) (*verdict.Verdict, error)
}

// AuditQuerier lists recorded review events.
type AuditQuerier interface {
	QueryEvents(ctx context.Context, filter compliance.AuditFilter) ([]compliance.ReviewEvent, error)
}

// ReviewHandler serves the dashboard API: available days, a day's sessions
// and review actions.
type ReviewHandler struct {
	days     DayReader
	reviewer Reviewer
	audit    AuditQuerier
	logger   *logging.Logger
}

// NewReviewHandler wires the handler. audit may be nil.
func NewReviewHandler(days DayReader, reviewer Reviewer, audit AuditQuerier, logger *logging.Logger) *ReviewHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReviewHandler{days: days, reviewer: reviewer, audit: audit, logger: logger}
}

type statusResponse struct {
	Status   string           `json:"status"`
	Msg      string           `json:"msg"`
	Analysis *verdict.Verdict `json:"ai_analysis,omitempty"`
}

// reviewBody accepts the id as a JSON string or number.
type reviewBody struct {
	ID     transcript.ID `json:"id"`
	Action string        `json:"action"`
	Date   string        `json:"date"`
}

// HealthCheck reports liveness.
func (h *ReviewHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Meta lists the days that have a collection, newest first.
func (h *ReviewHandler) Meta(w http.ResponseWriter, r *http.Request) {
	dates, err := h.days.Dates(r.Context())
	if err != nil {
		h.logger.Error("failed to list days", "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Msg: "读取日期列表失败"})
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"dates": dates})
}

// Sessions returns one day's collection. A missing date or day yields an
// empty array.
func (h *ReviewHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeDay(w, http.StatusOK, nil)
		return
	}
	convs, err := h.days.Load(r.Context(), date)
	switch {
	case err == nil:
		writeDay(w, http.StatusOK, convs)
	case errors.Is(err, daystore.ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Msg: "日期格式错误"})
	case errors.Is(err, daystore.ErrDayNotFound):
		writeDay(w, http.StatusOK, nil)
	default:
		h.logger.Error("failed to read day", "date", date, "error", err)
		writeDay(w, http.StatusInternalServerError, nil)
	}
}

// Review applies one review action.
func (h *ReviewHandler) Review(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReviewBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Msg: "请求格式错误"})
		return
	}

	v, err := h.reviewer.Review(r.Context(), review.Request{
		ConversationID: string(body.ID),
		Action:         body.Action,
		Date:           body.Date,
	})
	if err != nil {
		status, msg := reviewErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("review failed", "conversation_id", string(body.ID), "date", body.Date, "error", err)
		}
		writeJSON(w, status, statusResponse{Status: "error", Msg: msg})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Msg: "保存成功", Analysis: v})
}

// AuditEvents lists recorded review actions filtered by date and id.
func (h *ReviewHandler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeJSON(w, http.StatusOK, []compliance.ReviewEvent{})
		return
	}
	q := r.URL.Query()
	filter := compliance.AuditFilter{
		Day:            strings.TrimSpace(q.Get("date")),
		ConversationID: strings.TrimSpace(q.Get("id")),
		Action:         strings.TrimSpace(q.Get("action")),
		Limit:          100,
	}
	if filter.Day != "" {
		if err := daystore.ValidateDate(filter.Day); err != nil {
			writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Msg: "日期格式错误"})
			return
		}
	}
	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query review audit", "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Msg: "读取审计记录失败"})
		return
	}
	if events == nil {
		events = []compliance.ReviewEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func reviewErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, review.ErrMissingDate):
		return http.StatusBadRequest, "缺少日期参数"
	case errors.Is(err, daystore.ErrInvalidDate):
		return http.StatusBadRequest, "日期格式错误"
	case errors.Is(err, review.ErrInvalidAction):
		return http.StatusBadRequest, "未知操作"
	case errors.Is(err, daystore.ErrDayNotFound):
		return http.StatusNotFound, "该日期文件不存在"
	case errors.Is(err, daystore.ErrConversationNotFound):
		return http.StatusNotFound, "ID未找到"
	case errors.Is(err, daystore.ErrLockTimeout):
		return http.StatusConflict, "文件正被占用，请稍后重试"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeDay(w http.ResponseWriter, status int, convs []transcript.Conversation) {
	data, err := transcript.EncodeDay(convs)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Msg: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
