package config

import (
	"os"
	"strings"
)

// SchedulerConfig controls the daily seat release.
type SchedulerConfig struct {
	Enabled  bool
	Cron     string // five-field cron expression
	Timezone string // IANA zone the expression is evaluated in

	PreAssignUsername   string
	PreAssignSeatNumber int // zero disables pre-assignment
}

// LoadSchedulerConfig reads RELEASE_* and PREASSIGN_* variables.  The
// defaults fire at 01:35 India Standard Time with no pre-assignment.
func LoadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:             envBool("RELEASE_ENABLED", true),
		Cron:                envStr("RELEASE_CRON", "35 1 * * *"),
		Timezone:            envStr("RELEASE_TIMEZONE", "Asia/Kolkata"),
		PreAssignUsername:   strings.TrimSpace(os.Getenv("PREASSIGN_USERNAME")),
		PreAssignSeatNumber: envInt("PREASSIGN_SEAT_NUMBER", 0),
	}
}
