package auth

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically purges expired auth state.
type Janitor struct {
	cron     *cron.Cron
	svc      *Service
	schedule string
}

// NewJanitor schedules purges of svc on schedule (standard cron or @every syntax).
func NewJanitor(svc *Service, schedule string) *Janitor {
	return &Janitor{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		svc:      svc,
		schedule: schedule,
	}
}

// Start registers the purge job and starts the scheduler.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		if n := j.svc.PurgeExpired(); n > 0 {
			log.Printf("[auth] purged %d expired entries", n)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule auth janitor: %w", err)
	}

	j.cron.Start()
	log.Printf("[auth] janitor started schedule=%q", j.schedule)
	return nil
}

// Stop waits for a running purge to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	log.Println("[auth] janitor stopped")
}
