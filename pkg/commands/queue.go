package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/mfreeman451/boardwatch/pkg/models"
	"github.com/rs/zerolog"
)

// ErrInvalidValue rejects values outside MinCommandValue..MaxCommandValue.
var ErrInvalidValue = fmt.Errorf("%w: Value must be a number between %d and %d",
	models.ErrValidation, models.MinCommandValue, models.MaxCommandValue)

// Queue stores commands in the kv store and enforces their lifecycle.
type Queue struct {
	store  kv.Store
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

func NewQueue(store kv.Store, logger zerolog.Logger) *Queue {
	return &Queue{
		store:  store,
		logger: logger.With().Str("component", "commands").Logger(),
		now:    time.Now,
		newID:  func() string { return idPrefix + uuid.NewString() },
	}
}

// Enqueue validates and stores a new pending command.
func (q *Queue) Enqueue(ctx context.Context, deviceID string, value int, mode string) (*Command, error) {
	if value < models.MinCommandValue || value > models.MaxCommandValue {
		return nil, ErrInvalidValue
	}

	m, err := models.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	now := q.now().UTC()
	cmd := &Command{
		ID:        q.newID(),
		DeviceID:  deviceOrDefault(deviceID),
		Value:     value,
		Mode:      m,
		Status:    models.CommandPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	e, err := kv.NewEntity(Partition, cmd.ID, cmd)
	if err != nil {
		return nil, err
	}

	if err := q.store.Insert(ctx, e); err != nil {
		return nil, models.Upstream("insert command", err)
	}

	q.logger.Info().Str("command_id", cmd.ID).Int("value", value).Str("mode", string(m)).Msg("command queued")

	return cmd, nil
}

// ListPending returns every pending command in the partition, oldest first.
// A command's DeviceID is informational; any gateway may drain the queue.
func (q *Queue) ListPending(ctx context.Context) ([]Command, error) {
	entities, err := q.store.List(ctx, Partition)
	if err != nil {
		return nil, models.Upstream("list commands", err)
	}

	pending := make([]Command, 0, len(entities))

	for i := range entities {
		var cmd Command
		if err := entities[i].Decode(&cmd); err != nil {
			q.logger.Warn().Err(err).Str("command_id", entities[i].RowKey).Msg("skipping undecodable command")

			continue
		}

		if cmd.Status == models.CommandPending {
			pending = append(pending, cmd)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}

		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	return pending, nil
}

// Advance moves a command forward in its lifecycle. Setting the current status
// again is a no-op; leaving completed is a conflict.
func (q *Queue) Advance(ctx context.Context, commandID, status string) (*Command, error) {
	commandID = strings.TrimSpace(commandID)
	if commandID == "" || status == "" {
		return nil, models.Validationf("commandId and status are required")
	}

	target := models.CommandStatus(status)
	if target != models.CommandSent && target != models.CommandCompleted {
		return nil, models.Validationf("status must be 'sent' or 'completed'")
	}

	e, err := q.store.Get(ctx, Partition, commandID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: Command not found", models.ErrNotFound)
	}

	if err != nil {
		return nil, models.Upstream("get command", err)
	}

	var cmd Command
	if err := e.Decode(&cmd); err != nil {
		return nil, models.Upstream("decode command", err)
	}

	if cmd.Status == target {
		return &cmd, nil
	}

	if !canAdvance(cmd.Status, target) {
		return nil, fmt.Errorf("%w: command %s is already %s", models.ErrConflict, commandID, cmd.Status)
	}

	cmd.Status = target
	cmd.UpdatedAt = q.now().UTC()

	if err := e.SetData(&cmd); err != nil {
		return nil, err
	}

	switch err := q.store.Update(ctx, e); {
	case errors.Is(err, kv.ErrConflict):
		return nil, fmt.Errorf("%w: command %s was modified concurrently, retry", models.ErrConflict, commandID)
	case errors.Is(err, kv.ErrNotFound):
		return nil, fmt.Errorf("%w: Command not found", models.ErrNotFound)
	case err != nil:
		return nil, models.Upstream("update command", err)
	}

	q.logger.Info().Str("command_id", commandID).Str("status", string(target)).Msg("command advanced")

	return &cmd, nil
}

func canAdvance(from, to models.CommandStatus) bool {
	switch from {
	case models.CommandPending:
		return to == models.CommandSent || to == models.CommandCompleted
	case models.CommandSent:
		return to == models.CommandCompleted
	default:
		return false
	}
}

func deviceOrDefault(deviceID string) string {
	if deviceID = strings.TrimSpace(deviceID); deviceID == "" {
		return models.DefaultCommandDevice
	}

	return deviceID
}
