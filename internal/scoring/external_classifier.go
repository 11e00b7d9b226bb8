package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chatrisk/internal/llm"
	"github.com/wolfman30/chatrisk/internal/observability/metrics"
	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/internal/verdict"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

var externalTracer = otel.Tracer("chatrisk/external-classifier")

const (
	defaultExternalTimeout   = 60 * time.Second
	defaultExternalMaxTokens = 1024
)

// ExternalConfig tunes the external classifier.
type ExternalConfig struct {
	Model     string
	Timeout   time.Duration
	MaxTokens int32
}

// ExternalClassifier delegates scoring to a language model. It only compacts
// the transcript and maps the returned line numbers back to original indices;
// score and checkpoints are taken as returned.
type ExternalClassifier struct {
	client  llm.Client
	cfg     ExternalConfig
	logger  *logging.Logger
	metrics *metrics.ClassificationMetrics
}

func NewExternalClassifier(client llm.Client, cfg ExternalConfig, logger *logging.Logger, m *metrics.ClassificationMetrics) *ExternalClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultExternalTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultExternalMaxTokens
	}
	return &ExternalClassifier{client: client, cfg: cfg, logger: logger, metrics: m}
}

func (c *ExternalClassifier) Name() string { return KindLLM }

func (c *ExternalClassifier) Classify(ctx context.Context, convID string, utts []transcript.Utterance) (*verdict.Verdict, error) {
	compaction, ok := transcript.Compact(utts)
	if !ok {
		return nil, ErrNoTranscript
	}

	ctx, span := externalTracer.Start(ctx, "scoring.external_classify", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", convID),
		attribute.Int("transcript.lines", compaction.Index.Len()),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Complete(callCtx, llm.Request{
		Model:     c.cfg.Model,
		System:    []string{classificationSystemPrompt},
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: classificationPrompt(compaction.Text)}},
		MaxTokens: c.cfg.MaxTokens,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := "error"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		c.metrics.ObserveExternalLatency(outcome, elapsed)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
	}
	c.metrics.ObserveExternalLatency("ok", elapsed)

	parsed, err := parseExternalVerdict(resp.Text)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("unparseable classifier response",
			"conversation_id", convID,
			"error", err,
			"response_chars", len(resp.Text),
		)
		return nil, err
	}

	v := parsed.toVerdict(compaction.Index)
	span.SetAttributes(
		attribute.Int("verdict.score", v.Score),
		attribute.Bool("verdict.is_risk", v.IsRisk),
	)
	return v, nil
}

const classificationSystemPrompt = `你是电商客服会话的质检员，只评估客服的行为。
对话每行的格式为 "序号. [角色]: 内容"，角色只有 [客服] 和 [用户]。
用户的情绪、抱怨或粗鲁言辞一律不作为扣分依据。
高风险行为只有以下四类：
1. 辱骂、嘲讽或阴阳怪气地对待用户
2. 虚假承诺，例如无法兑现的赔偿、时效或处理结果
3. 严重推诿，例如拒绝处理、让用户自己去找快递或官网
4. 引导线下交易或索要、泄露隐私，例如加微信、QQ、私下转账、手机号、身份证
只输出一个 JSON 对象，不要输出解释或代码块标记。`

func classificationPrompt(transcriptText string) string {
	return fmt.Sprintf(`请审核下面的对话，并按以下格式返回 JSON：

{
  "score": 0 到 100 的整数，没有违规时为 100,
  "is_risk": 是否存在高风险行为,
  "summary": "一句话结论",
  "checkpoints": [{"penalty": 扣分, "reason": "违规类型与原因", "text": "客服原话"}],
  "highlight_indices": [违规行的序号]
}

没有违规时 checkpoints 和 highlight_indices 返回空数组。

对话：
%s`, transcriptText)
}

// externalVerdict is the classifier's answer. Some models name the penalty
// "point" instead of "penalty"; both are accepted.
type externalVerdict struct {
	Score            *int                 `json:"score"`
	IsRisk           *bool                `json:"is_risk"`
	Summary          string               `json:"summary"`
	Checkpoints      []externalCheckpoint `json:"checkpoints"`
	HighlightIndices []int                `json:"highlight_indices"`
}

type externalCheckpoint struct {
	Penalty *int   `json:"penalty"`
	Point   *int   `json:"point"`
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Text    string `json:"text"`
}

func parseExternalVerdict(text string) (*externalVerdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrUnparseableResponse)
	}
	var out externalVerdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseableResponse, err)
	}
	if out.Score == nil {
		return nil, fmt.Errorf("%w: missing score", ErrUnparseableResponse)
	}
	return &out, nil
}

func (e *externalVerdict) toVerdict(index transcript.IndexMap) *verdict.Verdict {
	v := verdict.Empty()
	v.Score = verdict.Clamp(*e.Score)
	v.Summary = e.Summary
	for _, cp := range e.Checkpoints {
		point := 0
		switch {
		case cp.Penalty != nil:
			point = *cp.Penalty
		case cp.Point != nil:
			point = *cp.Point
		}
		category := verdict.Category(cp.Type)
		if category == "" {
			category = verdict.CategoryAgentMisconduct
		}
		v.Checkpoints = append(v.Checkpoints, verdict.Checkpoint{
			Point:  point,
			Type:   category,
			Reason: cp.Reason,
			Text:   cp.Text,
		})
	}
	if e.IsRisk != nil {
		v.IsRisk = *e.IsRisk
	} else {
		v.IsRisk = len(v.Checkpoints) > 0
	}
	v.HighlightIndices = index.Remap(e.HighlightIndices)
	return v
}
