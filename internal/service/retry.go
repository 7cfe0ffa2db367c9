package service

import (
	"context"
	"errors"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
)

// withRetry reruns fn while it fails with a write conflict, up to maxRetries
// attempts. Any other error is returned immediately.
func (c *core) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err = fn()
		if !errors.Is(err, bracket.ErrWriteConflict) {
			return err
		}
		c.metrics.WriteConflict(op)
		c.logger.DebugContext(ctx, "write conflict", "operation", op, "attempt", attempt)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
