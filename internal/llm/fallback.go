package llm

import (
	"context"
	"errors"

	"github.com/wolfman30/chatrisk/pkg/logging"
)

// FallbackClient tries primary first and, when it fails, fallback.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
}

// NewFallbackClient creates a fallback-enabled client. With a nil fallback it
// behaves exactly like primary.
func NewFallbackClient(primary, fallback Client, logger *logging.Logger) *FallbackClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.fallback == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return Response{}, err
	}

	c.logger.Warn("primary llm failed, attempting fallback", "error", err)

	resp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback llm also failed",
			"primary_error", err,
			"fallback_error", fallbackErr,
		)
		return Response{}, errors.Join(err, fallbackErr)
	}
	return resp, nil
}
