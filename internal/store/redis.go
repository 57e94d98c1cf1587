package store

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisHashPrefix    = "store:"
	redisChannelPrefix = "storechg:"
)

// redisCmdable es el subconjunto del cliente que el store necesita.
type redisCmdable interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisStore implementa Store sobre Redis: los hijos de un path viven en
// un hash y cada mutación publica en un canal pubsub; los suscriptores
// releen el hash completo en cada aviso.
type RedisStore struct {
	client redisCmdable
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := s.client.Subscribe(subCtx, redisChannelPrefix+path)
	// Espera la confirmación de la suscripción antes del primer snapshot,
	// para no perder avisos entre la lectura inicial y el registro.
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		pubsub.Close()
		return nil, err
	}

	ch := make(chan Snapshot, subscriberBuffer)
	go func() {
		defer close(ch)
		defer pubsub.Close()

		snap, err := s.read(subCtx, path)
		if err == nil {
			ch <- snap
		} else if subCtx.Err() == nil {
			s.logger.Warn("redis initial snapshot failed", zap.String("path", path), zap.Error(err))
		}

		msgs := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				snap, err := s.read(subCtx, path)
				if err != nil {
					if subCtx.Err() == nil {
						s.logger.Warn("redis snapshot read failed", zap.String("path", path), zap.Error(err))
					}
					continue
				}
				offerLatest(ch, snap)
			}
		}
	}()
	return NewSubscription(ch, cancel), nil
}

func (s *RedisStore) Push(_ context.Context, _ string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *RedisStore) Set(ctx context.Context, path, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, redisHashPrefix+path, key, data).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, redisChannelPrefix+path, key).Err()
}

func (s *RedisStore) Remove(ctx context.Context, path, key string) error {
	if err := s.client.HDel(ctx, redisHashPrefix+path, key).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, redisChannelPrefix+path, key).Err()
}

func (s *RedisStore) read(ctx context.Context, path string) (Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, redisHashPrefix+path).Result()
	if err != nil {
		return Snapshot{}, err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	snap := Snapshot{Path: path, Children: make([]Child, 0, len(keys))}
	for _, k := range keys {
		snap.Children = append(snap.Children, Child{Key: k, Data: json.RawMessage(fields[k])})
	}
	return snap, nil
}
