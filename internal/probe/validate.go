package probe

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ValidateURLs probes every distinct candidate in parallel and returns those
// that answered 2xx, in first-proposal order. Probe errors and timeouts drop
// the candidate; they never fail the call.
func ValidateURLs(ctx context.Context, checker Checker, candidates []string, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := make(map[string]struct{}, len(candidates))
	unique := make([]string, 0, len(candidates))
	for _, u := range candidates {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}

	ok := make([]bool, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range unique {
		g.Go(func() error {
			status, err := checker.Status(gctx, u)
			if err != nil {
				logger.Warn("url probe failed",
					zap.String("event_type", "url_probe_skipped"),
					zap.String("url", u),
					zap.Error(err))
				return nil
			}
			ok[i] = IsSuccess(status)
			logger.Debug("url probed",
				zap.String("event_type", "url_probed"),
				zap.String("url", u),
				zap.Int("status", status))
			return nil
		})
	}
	_ = g.Wait()

	retained := make([]string, 0, len(unique))
	for i, u := range unique {
		if ok[i] {
			retained = append(retained, u)
		}
	}
	return retained
}
