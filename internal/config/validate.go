package config

import (
	"fmt"
	"time"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if c.Source.PageSize < 1 || c.Source.PageSize > 200 {
		return fmt.Errorf("source.page_size must be in 1..200 (got %d)", c.Source.PageSize)
	}
	if c.Source.MaxPageOffset < c.Source.PageSize {
		return fmt.Errorf("source.max_page_offset must be >= page_size (got %d)", c.Source.MaxPageOffset)
	}
	if c.Notify.PlanBatchSize <= 0 {
		return fmt.Errorf("notify.plan_batch_size must be > 0 (got %d)", c.Notify.PlanBatchSize)
	}
	if c.Notify.SendBatchSize <= 0 {
		return fmt.Errorf("notify.send_batch_size must be > 0 (got %d)", c.Notify.SendBatchSize)
	}
	if _, err := time.LoadLocation(c.Jobs.Timezone); err != nil {
		return fmt.Errorf("jobs.timezone: %w", err)
	}
	return nil
}
