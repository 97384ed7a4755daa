package kv

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entity is one row of the table. Data carries the JSON-encoded properties;
// Version is the optimistic concurrency token (the ETag of the row) and is
// maintained by the store.
type Entity struct {
	PartitionKey string          `json:"partition_key"`
	RowKey       string          `json:"row_key"`
	Data         json.RawMessage `json:"data"`
	Version      int64           `json:"version"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewEntity encodes v as the entity's properties.
func NewEntity(partition, row string, v any) (*Entity, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToEncode, err)
	}

	return &Entity{
		PartitionKey: partition,
		RowKey:       row,
		Data:         data,
	}, nil
}

// Decode unmarshals the entity's properties into v.
func (e *Entity) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w %s/%s: %w", ErrFailedToDecode, e.PartitionKey, e.RowKey, err)
	}

	return nil
}

// SetData re-encodes v into the entity, keeping keys and version.
func (e *Entity) SetData(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToEncode, err)
	}

	e.Data = data

	return nil
}

func (e *Entity) validateKeys() error {
	if e == nil || e.PartitionKey == "" || e.RowKey == "" {
		return ErrMissingKey
	}

	return nil
}

func (e *Entity) clone() Entity {
	c := *e
	c.Data = append(json.RawMessage(nil), e.Data...)

	return c
}
