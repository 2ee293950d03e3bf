package schedsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/notification"
)

// TickScheduler drives the notification dispatcher on a cron cadence.
// It adds no coordination of its own; the dispatcher's conditional claim
// keeps overlapping or concurrent ticks safe.
type TickScheduler struct {
	cronEngine *cron.Cron
	dispatcher *notification.Dispatcher
	logger     core.Logger
	tickSpec   string
	jobTimeout time.Duration
}

func NewTickScheduler(dispatcher *notification.Dispatcher, logger core.Logger, conf *core.Config) *TickScheduler {
	return &TickScheduler{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		dispatcher: dispatcher,
		logger:     logger,
		tickSpec:   conf.Notification.TickSpec,
		jobTimeout: 2 * conf.Notification.DeliveryTimeout,
	}
}

func (s *TickScheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.tickSpec, s.tick); err != nil {
		return errors.Wrapf(err, "adding dispatch job for spec %q", s.tickSpec)
	}
	s.cronEngine.Start()
	s.logger.Info(fmt.Sprintf("notification scheduler started, tick spec %q", s.tickSpec))
	return nil
}

func (s *TickScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	rep, err := s.dispatcher.ProcessDue(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error(fmt.Sprintf("processing due notifications: %v", err), err)
		return
	}
	if rep.Claimed > 0 || rep.StaleReleased > 0 || len(rep.Failures) > 0 {
		s.logger.Info(fmt.Sprintf(
			"dispatch tick: claimed=%d fired=%d exhausted=%d released=%d stale_released=%d failures=%d",
			rep.Claimed, rep.Fired, rep.Exhausted, rep.Released, rep.StaleReleased, len(rep.Failures),
		))
	}
}

// Stop halts the cron engine and waits for a running tick to finish.
func (s *TickScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("notification scheduler stopped")
}
