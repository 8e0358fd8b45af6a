package scheduler

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// Trigger yields the next firing instant strictly after t.  A zero time
// means the trigger will never fire again.
type Trigger interface {
	Next(t time.Time) time.Time
}

// CronTrigger fires on a standard five-field cron expression evaluated in
// a fixed timezone.
type CronTrigger struct {
	expr     string
	location *time.Location
	schedule cron.Schedule
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewCronTrigger parses expr (for example "35 1 * * *") in timezone (for
// example "Asia/Kolkata").
func NewCronTrigger(expr, timezone string) (*CronTrigger, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	sched, err := cronParser.Parse(fmt.Sprintf("CRON_TZ=%s %s", timezone, expr))
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &CronTrigger{expr: expr, location: loc, schedule: sched}, nil
}

// Next returns the next firing after t, in t's location.
func (c *CronTrigger) Next(t time.Time) time.Time { return c.schedule.Next(t) }

// String describes the schedule for logs.
func (c *CronTrigger) String() string { return c.expr + " " + c.location.String() }
