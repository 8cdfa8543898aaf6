package jobs

import (
	"context"
	"fmt"

	"github.com/fontmarkt/catalog-api/pkg/catalog/storage"
	"github.com/fontmarkt/catalog-api/pkg/sweeper"
	"github.com/fontmarkt/catalog-api/pkg/tools"
	"github.com/robfig/cron/v3"
)

// ScheduleOrphanSweep sets up a cron job that removes unreferenced stored
// objects on schedule. The job stops when ctx is done.
func ScheduleOrphanSweep(ctx context.Context, schedule string, refs sweeper.RefSource, store storage.ObjectStore, opts sweeper.Options) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		tools.Dispatch(ctx, "orphan_sweep", func(ctx context.Context) error {
			_, err := sweeper.Sweep(ctx, refs, store, opts)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("schedule orphan sweep %q: %w", schedule, err)
	}
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c, nil
}
