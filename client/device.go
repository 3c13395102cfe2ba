package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luma/courage/storage"
)

// DeviceIDKey is the store key holding this device's identifier.
const DeviceIDKey = "courage.deviceId"

// DeviceID returns the persistent identifier of this device, creating and
// storing a random one the first time. Every installation gets its own id, even
// when several belong to the same user.
func DeviceID(ctx context.Context, store storage.Store, log *zap.Logger) (uuid.UUID, error) {
	if log == nil {
		log = zap.NewNop()
	}

	value, ok, err := store.Get(ctx, DeviceIDKey)
	if err != nil {
		return uuid.Nil, fmt.Errorf("Failed to read device id: %w", err)
	}

	if ok {
		id, err := uuid.Parse(value)
		if err == nil {
			return id, nil
		}

		log.Warn("Replacing unparseable device id", zap.String("value", value), zap.Error(err))
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("Failed to generate device id: %w", err)
	}

	if err := store.Set(ctx, DeviceIDKey, id.String()); err != nil {
		return uuid.Nil, fmt.Errorf("Failed to store device id: %w", err)
	}

	log.Info("Generated device id", zap.Stringer("deviceId", id))

	return id, nil
}
