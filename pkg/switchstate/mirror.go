// Package switchstate mirrors the last hardware configuration reported for the
// STM32 master board.
package switchstate

import (
	"context"
	"errors"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/mfreeman451/boardwatch/pkg/models"
	"github.com/rs/zerolog"
)

// Partition holds a single row keyed by the board id.
const Partition = "stm32-switch-state"

// State is the mirrored configuration. Value keeps 0 distinct from nil.
type State struct {
	DeviceID    string      `json:"deviceId"`
	Mode        models.Mode `json:"mode"`
	Value       *int        `json:"value"`
	LastUpdated *time.Time  `json:"lastUpdated"`
}

type Mirror struct {
	store   kv.Store
	boardID string
	logger  zerolog.Logger
	now     func() time.Time
}

func NewMirror(store kv.Store, boardID string, logger zerolog.Logger) *Mirror {
	if boardID == "" {
		boardID = models.DefaultBoardID
	}

	return &Mirror{
		store:   store,
		boardID: boardID,
		logger:  logger.With().Str("component", "switchstate").Logger(),
		now:     time.Now,
	}
}

// Set replaces the mirrored state.
func (m *Mirror) Set(ctx context.Context, mode string, value *int) (*State, error) {
	md, err := models.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	state := &State{
		DeviceID:    m.boardID,
		Mode:        md,
		Value:       value,
		LastUpdated: &now,
	}

	e, err := kv.NewEntity(Partition, m.boardID, state)
	if err != nil {
		return nil, err
	}

	if err := m.store.Upsert(ctx, e); err != nil {
		return nil, models.Upstream("upsert switch state", err)
	}

	m.logger.Debug().Str("mode", string(md)).Msg("switch state updated")

	return state, nil
}

// Get returns the mirrored state or the unknown sentinel.
func (m *Mirror) Get(ctx context.Context) (*State, error) {
	e, err := m.store.Get(ctx, Partition, m.boardID)
	if errors.Is(err, kv.ErrNotFound) {
		return &State{DeviceID: m.boardID, Mode: models.ModeUnknown}, nil
	}

	if err != nil {
		return nil, models.Upstream("get switch state", err)
	}

	var state State
	if err := e.Decode(&state); err != nil {
		return nil, models.Upstream("decode switch state", err)
	}

	return &state, nil
}
