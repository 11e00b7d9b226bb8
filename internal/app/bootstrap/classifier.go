package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/chatrisk/internal/config"
	"github.com/wolfman30/chatrisk/internal/llm"
	"github.com/wolfman30/chatrisk/internal/observability/metrics"
	"github.com/wolfman30/chatrisk/internal/rules"
	"github.com/wolfman30/chatrisk/internal/scoring"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

// LLM provider selectors.
const (
	ProviderBedrock         = "bedrock"
	ProviderGemini          = "gemini"
	ProviderBedrockFallback = "bedrock+gemini"
)

// BuildLLMClient wires the external model client named by LLM_PROVIDER.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, loadAWS AWSLoader, logger *logging.Logger) (llm.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	bedrock := func() (llm.Client, error) {
		if strings.TrimSpace(cfg.BedrockModel) == "" {
			return nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for provider %q", cfg.LLMProvider)
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModel), nil
	}
	gemini := func() (llm.Client, error) {
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, fmt.Errorf("bootstrap: GEMINI_API_KEY is required for provider %q", cfg.LLMProvider)
		}
		return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	}

	switch cfg.LLMProvider {
	case "", ProviderBedrock:
		return bedrock()
	case ProviderGemini:
		return gemini()
	case ProviderBedrockFallback:
		primary, err := bedrock()
		if err != nil {
			return nil, err
		}
		fallback, err := gemini()
		if err != nil {
			return nil, err
		}
		logger.Info("llm fallback enabled", "primary", ProviderBedrock, "fallback", ProviderGemini)
		return llm.NewFallbackClient(primary, fallback, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown llm provider %q", cfg.LLMProvider)
	}
}

// BuildClassifier wires the classifier named by CLASSIFIER. Rule tables come
// from RULES_FILE when set.
func BuildClassifier(ctx context.Context, cfg *appconfig.Config, loadAWS AWSLoader, m *metrics.ClassificationMetrics, logger *logging.Logger) (scoring.Classifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := scoring.Options{Logger: logger, Metrics: m}
	switch cfg.Classifier {
	case "", scoring.KindRules:
		rs, err := rules.LoadFile(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		opts.Matcher = rules.NewMatcher(rs, logger)
		if cfg.RulesFile != "" {
			logger.Info("rule tables loaded", "path", cfg.RulesFile)
		}
	case scoring.KindLLM:
		client, err := BuildLLMClient(ctx, cfg, loadAWS, logger)
		if err != nil {
			return nil, err
		}
		opts.LLM = client
		opts.External = scoring.ExternalConfig{
			Model:     modelFor(cfg),
			Timeout:   cfg.LLMTimeout,
			MaxTokens: int32(cfg.LLMMaxTokens),
		}
	}
	return scoring.New(cfg.Classifier, opts)
}

func modelFor(cfg *appconfig.Config) string {
	if cfg.LLMProvider == ProviderGemini {
		return cfg.GeminiModelID
	}
	return cfg.BedrockModel
}
