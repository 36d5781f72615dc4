package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "chiptable:table:"
	redisChannel   = "chiptable:updates"
)

// Redis stores each document under its own key. The version check runs
// inside WATCH/MULTI and every commit is published so that subscribers in
// other processes see it.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub
	logger *log.Logger
	hub    *hub
	done   chan struct{}
}

var _ Store = (*Redis)(nil)

// NewRedis connects to the redis server at addr
func NewRedis(ctx context.Context, addr string, db int, opts ...Option) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return newRedis(ctx, client, opts...)
}

func newRedis(ctx context.Context, client *redis.Client, opts ...Option) (*Redis, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	pubsub := client.Subscribe(ctx, redisChannel)
	// Wait for the subscription to be confirmed so no commit is missed
	if _, err := pubsub.Receive(pingCtx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe %s: %w", redisChannel, err)
	}

	o := buildOptions(opts)
	r := &Redis{
		client: client,
		pubsub: pubsub,
		logger: o.logger.With("driver", "redis"),
		hub:    newHub(),
		done:   make(chan struct{}),
	}
	go r.listen()
	return r, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (r *Redis) Create(ctx context.Context, id string, doc []byte) (Snapshot, error) {
	data, err := initDocument(id, doc)
	if err != nil {
		return Snapshot{}, err
	}

	ok, err := r.client.SetNX(ctx, redisKey(id), data, 0).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("create table: %w", err)
	}
	if !ok {
		return Snapshot{}, ErrExists
	}

	snap := Snapshot{ID: id, Version: 1, Data: data}
	r.hub.publish(snap)
	if err := r.client.Publish(ctx, redisChannel, data).Err(); err != nil {
		r.logger.Warn("Failed to publish create", "table", id, "error", err)
	}
	return snap, nil
}

func (r *Redis) Get(ctx context.Context, id string) (Snapshot, error) {
	data, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get table: %w", err)
	}
	return snapshotOf(data)
}

func (r *Redis) Update(ctx context.Context, id string, version int64, updates Updates) (Snapshot, error) {
	key := redisKey(id)
	var next []byte

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		meta, err := readMeta(data)
		if err != nil {
			return err
		}
		if meta.Version != version {
			return ErrVersionConflict
		}

		next, err = applyUpdates(data, version, updates)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			pipe.Publish(ctx, redisChannel, next)
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		// Someone else wrote the key between WATCH and EXEC
		return Snapshot{}, ErrVersionConflict
	case err != nil:
		return Snapshot{}, err
	}

	snap := Snapshot{ID: id, Version: version + 1, Data: next}
	r.hub.publish(snap)
	return snap, nil
}

func (r *Redis) Subscribe(ctx context.Context, id string) (<-chan Snapshot, error) {
	sub, err := r.hub.subscribe(ctx, id, r.Get)
	if err != nil {
		return nil, err
	}
	return sub.ch, nil
}

// listen republishes commits announced on the shared channel. Versions this
// process already delivered are dropped by the subscribers.
func (r *Redis) listen() {
	ch := r.pubsub.Channel()
	for {
		select {
		case <-r.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			snap, err := snapshotOf([]byte(msg.Payload))
			if err != nil {
				r.logger.Warn("Ignoring malformed update", "error", err)
				continue
			}
			r.hub.publish(snap)
		}
	}
}

func (r *Redis) Close() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)
	r.hub.close()
	_ = r.pubsub.Close()
	return r.client.Close()
}
