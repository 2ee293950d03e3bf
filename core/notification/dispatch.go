package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/user"
)

type (
	// ChannelAdapter actually delivers through one channel. Implementations live
	// in services/; a send must respect ctx's deadline.
	ChannelAdapter interface {
		Send(ctx context.Context, usr user.User, n Notification) error
	}

	// AdapterRegistry maps a channel id to its adapter.
	AdapterRegistry interface {
		Adapter(channel string) (ChannelAdapter, bool)
	}

	// DeliveryFailure records one failed (record, user, channel) attempt.
	// Failures never fail the occurrence; they are reported for the adapter
	// layer / operators to act on.
	DeliveryFailure struct {
		NotificationID string `json:"notification_id"`
		UserID         string `json:"user_id"`
		Channel        string `json:"channel"`
		Reason         string `json:"reason"`
	}

	// Report summarizes one dispatcher tick.
	Report struct {
		Claimed       int               `json:"claimed"`
		Fired         int               `json:"fired"`
		Exhausted     int               `json:"exhausted"`
		Released      int               `json:"released"`
		StaleReleased int               `json:"stale_released"`
		Failures      []DeliveryFailure `json:"failures,omitempty"`
	}

	// Dispatcher claims due notifications and fans their deliveries out over a
	// bounded worker pool. The claim (pending -> processing, conditional on
	// status) is the only synchronization between concurrent ticks: each due
	// record is processed by exactly one run.
	Dispatcher struct {
		repo     Repository
		resolver *Resolver
		adapters AdapterRegistry
		logger   core.Logger

		workers         int
		deliveryTimeout time.Duration
		staleClaimAge   time.Duration
	}
)

func NewDispatcher(
	repo Repository,
	resolver *Resolver,
	adapters AdapterRegistry,
	logger core.Logger,
	conf *core.Config,
) *Dispatcher {
	workers := conf.Notification.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		repo:            repo,
		resolver:        resolver,
		adapters:        adapters,
		logger:          logger,
		workers:         workers,
		deliveryTimeout: conf.Notification.DeliveryTimeout,
		staleClaimAge:   conf.Notification.StaleClaimAge,
	}
}

// ProcessDue runs one tick: re-arm stale claims, claim everything due at now,
// then deliver and advance each claimed record. Delivery is at-least-once: a
// crash after the claim leaves a processing record that a later tick re-arms
// and redelivers.
func (d *Dispatcher) ProcessDue(ctx context.Context, now time.Time) (Report, error) {
	var rep Report

	stale, err := d.repo.ReleaseStaleClaims(ctx, now.Add(-d.staleClaimAge))
	if err != nil {
		return rep, errors.Wrap(err, "releasing stale claims")
	}
	rep.StaleReleased = stale
	if stale > 0 {
		d.logger.Warn(fmt.Sprintf("re-armed %d stale claimed notification(s)", stale))
	}

	claimed, err := d.repo.ClaimDueNotifications(ctx, now)
	if err != nil {
		return rep, errors.Wrap(err, "claiming due notifications")
	}
	rep.Claimed = len(claimed)
	if len(claimed) == 0 {
		return rep, nil
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan Notification)
	)
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				d.fire(ctx, n, now, &mu, &rep)
			}
		}()
	}
	for _, n := range claimed {
		jobs <- n
	}
	close(jobs)
	wg.Wait()

	return rep, nil
}

// fire delivers one claimed occurrence and advances the record's state machine.
func (d *Dispatcher) fire(ctx context.Context, n Notification, now time.Time, mu *sync.Mutex, rep *Report) {
	deliveries, err := d.resolver.Resolve(ctx, n.Recipients, n.Channels, n.Type)
	if err != nil {
		// cannot resolve recipients: this occurrence has not happened; put the
		// record back so the next tick retries it
		d.logger.Error(fmt.Sprintf("resolving recipients for notification %s: %v", n.ID, err), err)
		if relErr := d.repo.ReleaseClaimedNotification(ctx, n.ID); relErr != nil {
			d.logger.Error(fmt.Sprintf("releasing claim on notification %s: %v", n.ID, relErr), relErr)
		}
		mu.Lock()
		rep.Released++
		mu.Unlock()
		return
	}

	var failures []DeliveryFailure
	for _, dv := range deliveries {
		for _, ch := range dv.Channels {
			if fail := d.deliver(ctx, dv.User, ch, n); fail != nil {
				failures = append(failures, *fail)
			}
		}
	}

	// the occurrence fired once attempts were made, whatever the per-channel
	// outcomes; failed deliveries are reported, never replayed by this core
	n.OccurrenceCount++
	n.SentAt = now
	n.UpdatedAt = now

	next, err := n.Schedule.NextOccurrence(n.OccurrenceCount, now)
	exhausted := err == ErrScheduleExhausted
	if exhausted {
		if n.Schedule.IsRecurring() {
			n.Status = StatusExhausted
		} else {
			n.Status = StatusSent
		}
		n.NextOccurrenceAt = time.Time{}
	} else {
		n.Status = StatusPending
		n.NextOccurrenceAt = next
	}

	if _, err := d.repo.AdvanceClaimedNotification(ctx, n); err != nil {
		if errors.Cause(err) == ErrNotClaimed {
			// someone else moved the record while we held the claim; must not
			// double-process, so drop our result and log it
			d.logger.Warn(fmt.Sprintf("notification %s no longer claimed; occurrence not advanced", n.ID))
		} else {
			d.logger.Error(fmt.Sprintf("advancing notification %s: %v", n.ID, err), err)
		}
		return
	}

	mu.Lock()
	rep.Fired++
	if exhausted {
		rep.Exhausted++
	}
	rep.Failures = append(rep.Failures, failures...)
	mu.Unlock()
}

// deliver runs a single (user, channel) attempt, bounded by the delivery timeout.
func (d *Dispatcher) deliver(ctx context.Context, usr user.User, channel string, n Notification) *DeliveryFailure {
	adapter, ok := d.adapters.Adapter(channel)
	if !ok {
		return &DeliveryFailure{
			NotificationID: n.ID, UserID: usr.ID, Channel: channel,
			Reason: "no adapter registered for channel",
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()
	if err := adapter.Send(sendCtx, usr, n); err != nil {
		return &DeliveryFailure{
			NotificationID: n.ID, UserID: usr.ID, Channel: channel,
			Reason: err.Error(),
		}
	}
	return nil
}
