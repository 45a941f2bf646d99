package scheduler

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/interfaces"
)

const (
	JobCookieFlush = "cookie-flush"
	JobCookiePurge = "cookie-purge"

	cookiePurgeSchedule = "@daily"
)

// CookieJar is the in-memory cookie backend maintained by the jobs
type CookieJar interface {
	Flush(ctx context.Context) error
	PurgeExpired(ctx context.Context) int
}

// RegisterCookieJobs schedules the periodic jar flush and, when enabled, the
// expired-record purge. An empty flush schedule registers nothing.
func RegisterCookieJobs(s interfaces.SchedulerService, jar CookieJar, storage interfaces.CookieStorage, config common.CookiesConfig, logger arbor.ILogger) error {
	if config.FlushSchedule == "" {
		logger.Info().Msg("Cookie flush schedule disabled")
		return nil
	}

	flush := func(ctx context.Context) error {
		if config.PurgeExpired {
			if purged := jar.PurgeExpired(ctx); purged > 0 {
				logger.Debug().Int("purged", purged).Msg("Expired cookies dropped from jar")
			}
		}
		return jar.Flush(ctx)
	}
	if err := s.RegisterJob(JobCookieFlush, config.FlushSchedule, "Persist pending cookie changes", flush); err != nil {
		return fmt.Errorf("failed to register %s: %w", JobCookieFlush, err)
	}

	if !config.PurgeExpired || storage == nil {
		return nil
	}

	purge := func(ctx context.Context) error {
		purged, err := storage.PurgeExpired(ctx)
		if err != nil {
			return fmt.Errorf("failed to purge expired cookies: %w", err)
		}
		logger.Info().Int("purged", purged).Msg("Expired cookies purged from storage")
		return nil
	}
	if err := s.RegisterJob(JobCookiePurge, cookiePurgeSchedule, "Delete expired cookie records from storage", purge); err != nil {
		return fmt.Errorf("failed to register %s: %w", JobCookiePurge, err)
	}
	return nil
}
