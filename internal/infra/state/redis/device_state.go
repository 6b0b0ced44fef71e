package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/wally0302/menu/internal/domain"
)

// deviceStateTTL keeps abandoned device state from accumulating forever.
const deviceStateTTL = 30 * 24 * time.Hour

// RedisDeviceState implements DeviceStateRepository. It is the server-side
// analog of the client's local storage: the local-mode cart and the display
// name survive reconnects and restarts, keyed by the anonymous device id.
type RedisDeviceState struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisDeviceState(client *redis.Client, keyPrefix string) *RedisDeviceState {
	if client == nil {
		panic("redis client cannot be nil for RedisDeviceState")
	}
	if keyPrefix == "" {
		keyPrefix = "go:"
	}
	return &RedisDeviceState{client: client, keyPrefix: keyPrefix}
}

func (r *RedisDeviceState) cartKey(deviceID string) string {
	return fmt.Sprintf("%sdevice:%s:cart", r.keyPrefix, deviceID)
}

func (r *RedisDeviceState) nameKey(deviceID string) string {
	return fmt.Sprintf("%sdevice:%s:name", r.keyPrefix, deviceID)
}

func (r *RedisDeviceState) SaveLocalCart(ctx context.Context, deviceID string, cart domain.Cart) error {
	payload, err := json.Marshal(cart.Clone())
	if err != nil {
		return fmt.Errorf("redis: marshal local cart for device %s: %w", deviceID, err)
	}
	if err := r.client.Set(ctx, r.cartKey(deviceID), payload, deviceStateTTL).Err(); err != nil {
		return fmt.Errorf("redis: save local cart for device %s: %w", deviceID, err)
	}
	return nil
}

func (r *RedisDeviceState) LoadLocalCart(ctx context.Context, deviceID string) (domain.Cart, error) {
	raw, err := r.client.Get(ctx, r.cartKey(deviceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Cart{}, nil
		}
		return nil, fmt.Errorf("redis: load local cart for device %s: %w", deviceID, err)
	}
	var cart domain.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, fmt.Errorf("redis: unmarshal local cart for device %s: %w", deviceID, err)
	}
	return cart, nil
}

func (r *RedisDeviceState) SaveDisplayName(ctx context.Context, deviceID, name string) error {
	if err := r.client.Set(ctx, r.nameKey(deviceID), name, deviceStateTTL).Err(); err != nil {
		return fmt.Errorf("redis: save display name for device %s: %w", deviceID, err)
	}
	return nil
}

func (r *RedisDeviceState) LoadDisplayName(ctx context.Context, deviceID string) (string, error) {
	name, err := r.client.Get(ctx, r.nameKey(deviceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis: load display name for device %s: %w", deviceID, err)
	}
	return name, nil
}
