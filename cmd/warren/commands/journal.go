package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/blackboard"
)

// connectJournal opens the journal named in warren.yml for the inspection
// commands, which cannot work without it.
func connectJournal(ctx context.Context) (*blackboard.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Journal.RedisURL == "" {
		return nil, nil, printer.Error(
			"journal not configured",
			"No journal.redis_url is set, so runs are not recorded.",
			[]string{"Point warren.yml at a Redis server:\n  journal:\n    redis_url: redis://localhost:6379/0"},
		)
	}

	client, err := blackboard.NewClientFromURL(cfg.Journal.RedisURL, cfg.Journal.Instance)
	if err != nil {
		return nil, nil, printer.Error("invalid journal configuration", err.Error(), nil)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, printer.ErrorWithContext(
			"journal unreachable",
			fmt.Sprintf("Error: %v", err),
			map[string]string{"Redis": cfg.Journal.RedisURL},
			[]string{"Start Redis or fix journal.redis_url in warren.yml"},
		)
	}
	return client, cfg, nil
}
