package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/supportbot/dispatcher/pkg/models"
)

// DefaultMaxFetchRetries and DefaultFetchBackoff implement spec.md §4.4:
// "retry up to 3 times with 2-second back-off; on persistent failure the
// system must fail startup".
const (
	DefaultMaxFetchRetries = 3
	DefaultFetchBackoff    = 2 * time.Second
)

// RetryFetcher fetches external tool descriptors, retrying per policy.
type RetryFetcher func(ctx context.Context, external ExternalToolServer) ([]models.ToolDescriptor, error)

// NewRetryFetcher builds a RetryFetcher that retries maxRetries times with
// a fixed backoff between attempts.
func NewRetryFetcher(maxRetries int, backoff time.Duration) RetryFetcher {
	return func(ctx context.Context, external ExternalToolServer) ([]models.ToolDescriptor, error) {
		var lastErr error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			descriptors, err := external.ListTools(ctx)
			if err == nil {
				return descriptors, nil
			}
			lastErr = err
			slog.Warn("external tool server fetch failed", "attempt", attempt+1, "error", err)

			if attempt == maxRetries {
				break
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, fmt.Errorf("external tool server unreachable after %d attempts: %w", maxRetries+1, lastErr)
	}
}
