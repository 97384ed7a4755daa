package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/alerts"
	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/mfreeman451/boardwatch/pkg/models"
	"github.com/rs/zerolog"
)

// Tracker owns one partition of status records, e.g. all gateways.
type Tracker struct {
	store     kv.Store
	partition string
	label     string
	timeout   time.Duration
	alerter   alerts.AlertService
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	alerted map[string]time.Time // id -> lastUpdated already reported as expired
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithAlerter enables recovery and offline alerts.
func WithAlerter(a alerts.AlertService) Option {
	return func(t *Tracker) {
		t.alerter = a
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLabel sets the human-readable device class used in alert messages.
func WithLabel(label string) Option {
	return func(t *Tracker) {
		t.label = label
	}
}

func New(store kv.Store, partition string, timeout time.Duration, logger zerolog.Logger, opts ...Option) *Tracker {
	if timeout <= 0 {
		timeout = models.DefaultStatusTimeout
	}

	t := &Tracker{
		store:     store,
		partition: partition,
		label:     "Device",
		timeout:   timeout,
		logger:    logger.With().Str("component", "tracker").Str("partition", partition).Logger(),
		now:       time.Now,
		alerted:   make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Timeout returns the staleness window after which an online record reads offline.
func (t *Tracker) Timeout() time.Duration {
	return t.timeout
}

// Report upserts a device's status stamped with the current time.
func (t *Tracker) Report(ctx context.Context, id, status string, latencyMs *float64) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.Validationf("Invalid or missing id")
	}

	st, err := models.ParseDeviceStatus(status)
	if err != nil {
		return nil, err
	}

	if latencyMs != nil && *latencyMs < 0 {
		return nil, models.Validationf("latencyMs must be a non-negative number")
	}

	previous := t.effectiveStatus(ctx, id)

	now := t.now().UTC()
	row := stored{Status: st, LastUpdated: now, LatencyMs: latencyMs}

	e, err := kv.NewEntity(t.partition, id, row)
	if err != nil {
		return nil, err
	}

	if err := t.store.Upsert(ctx, e); err != nil {
		return nil, models.Upstream("upsert status", err)
	}

	t.logger.Debug().Str("id", id).Str("status", string(st)).Msg("status reported")

	t.notifyTransition(ctx, id, previous, st, now)

	return t.derive(id, &row), nil
}

// Heartbeat marks a device online.
func (t *Tracker) Heartbeat(ctx context.Context, id string, latencyMs *float64) (*Record, error) {
	return t.Report(ctx, id, string(models.StatusOnline), latencyMs)
}

// Status returns the derived status; a stored online record older than the
// timeout reads offline without being rewritten.
func (t *Tracker) Status(ctx context.Context, id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.Validationf("Invalid or missing id")
	}

	row, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if row == nil {
		return unknownRecord(id), nil
	}

	return t.derive(id, row), nil
}

func (t *Tracker) load(ctx context.Context, id string) (*stored, error) {
	e, err := t.store.Get(ctx, t.partition, id)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, models.Upstream("get status", err)
	}

	var row stored
	if err := e.Decode(&row); err != nil {
		return nil, models.Upstream("decode status", err)
	}

	return &row, nil
}

func (t *Tracker) derive(id string, row *stored) *Record {
	age := t.now().Sub(row.LastUpdated)
	ageMs := age.Milliseconds()
	lastUpdated := row.LastUpdated

	status := row.Status
	if status == models.StatusOnline && age > t.timeout {
		status = models.StatusOffline
	}

	return &Record{
		ID:          id,
		Status:      status,
		LastUpdated: &lastUpdated,
		AgeMs:       &ageMs,
		LatencyMs:   row.LatencyMs,
	}
}

// effectiveStatus is best effort: a failed lookup only suppresses alerts.
func (t *Tracker) effectiveStatus(ctx context.Context, id string) models.DeviceStatus {
	row, err := t.load(ctx, id)
	if err != nil {
		t.logger.Warn().Err(err).Str("id", id).Msg("could not read previous status")

		return models.StatusUnknown
	}

	if row == nil {
		return models.StatusUnknown
	}

	return t.derive(id, row).Status
}

func (t *Tracker) notifyTransition(ctx context.Context, id string, previous, current models.DeviceStatus, at time.Time) {
	switch {
	case current == models.StatusOnline && previous == models.StatusOffline:
		t.clearExpired(id)
		t.sendAlert(ctx, &alerts.WebhookAlert{
			Level:    alerts.Info,
			Title:    "Device Recovered",
			Message:  fmt.Sprintf("%s '%s' is back online", t.label, id),
			DeviceID: id,
			Details: map[string]any{
				"partition":     t.partition,
				"recovery_time": at.Format(time.RFC3339),
			},
		})
	case current == models.StatusOffline && previous == models.StatusOnline:
		t.sendAlert(ctx, &alerts.WebhookAlert{
			Level:    alerts.Warning,
			Title:    "Device Offline",
			Message:  fmt.Sprintf("%s '%s' reported offline", t.label, id),
			DeviceID: id,
			Details: map[string]any{
				"partition": t.partition,
				"reported":  at.Format(time.RFC3339),
			},
		})
	case current == models.StatusOnline:
		t.clearExpired(id)
	}
}

func (t *Tracker) sendAlert(ctx context.Context, alert *alerts.WebhookAlert) {
	if t.alerter == nil || !t.alerter.IsEnabled() {
		return
	}

	if err := t.alerter.Alert(ctx, alert); err != nil {
		if errors.Is(err, alerts.ErrWebhookCooldown) {
			t.logger.Debug().Str("id", alert.DeviceID).Str("title", alert.Title).Msg("alert rate limited")

			return
		}

		t.logger.Error().Err(err).Str("id", alert.DeviceID).Str("title", alert.Title).Msg("failed to send alert")
	}
}

func (t *Tracker) clearExpired(id string) {
	t.mu.Lock()
	delete(t.alerted, id)
	t.mu.Unlock()
}
