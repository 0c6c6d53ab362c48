package bootstrap

import (
	"fmt"
	"time"

	"github.com/TEJ42000/ALLMS-sub004/config"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/scheduler"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
)

// MaintenanceSchedule returns the daily run time, or a fixed interval when
// one is configured.
func MaintenanceSchedule(cfg *config.Config) (scheduler.Schedule, error) {
	m := cfg.Maintenance
	if m.Interval > 0 {
		return scheduler.NewIntervalSchedule(m.Interval), nil
	}
	daily, err := scheduler.NewDailySchedule(m.RunHour, m.RunMinute, cfg.Gamification.Location)
	if err != nil {
		return nil, fmt.Errorf("maintenance schedule: %w", err)
	}
	return daily, nil
}

// NewScheduler returns a scheduler with the maintenance job registered.
// With maintenance disabled the job stays registered but disabled, so
// manual runs through RunNow still land in history and metrics.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	schedule, err := MaintenanceSchedule(a.Config)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(scheduler.Config{
		Logger:         a.Log,
		Timezone:       a.Config.Gamification.Location,
		TickInterval:   time.Second,
		MaxHistorySize: 100,
	})
	if err := sched.Register(a.Maintenance, schedule); err != nil {
		return nil, err
	}
	if !a.Config.Maintenance.Enabled {
		if err := sched.DisableJob(a.Maintenance.Name()); err != nil {
			return nil, err
		}
	}

	a.Log.Info("maintenance registered",
		logger.String("schedule", schedule.String()),
		logger.Bool("enabled", a.Config.Maintenance.Enabled),
	)
	return sched, nil
}
