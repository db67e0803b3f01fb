package watchdog

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// DefaultCronExpr — расписание тиков по умолчанию: каждые 5 минут.
const DefaultCronExpr = "*/5 * * * *"

// ParseSchedule парсит cron-выражение расписания тиков.
func ParseSchedule(cronExpr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule, nil
}

// NextTick вычисляет время следующего тика после from.
func NextTick(schedule cron.Schedule, from time.Time) time.Time {
	return schedule.Next(from)
}
