package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

type driverFactory func(t *testing.T) Store

func drivers(t *testing.T) map[string]driverFactory {
	t.Helper()

	factories := map[string]driverFactory{
		"memory": func(t *testing.T) Store {
			return NewMemory()
		},
		"file": func(t *testing.T) Store {
			s, err := NewFile(t.TempDir(), 10*time.Millisecond, WithLogger(testLogger()))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			path := filepath.Join(t.TempDir(), "tables.db")
			s, err := NewSQLite(context.Background(), path, 10*time.Millisecond, WithLogger(testLogger()))
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			s, err := NewRedis(context.Background(), mr.Addr(), 0, WithLogger(testLogger()))
			require.NoError(t, err)
			return s
		},
	}

	if dsn := os.Getenv("CHIPTABLE_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T) Store {
			s, err := NewPostgres(context.Background(), dsn, WithLogger(testLogger()))
			require.NoError(t, err)
			_, err = s.db.Exec(`DELETE FROM chip_tables`)
			require.NoError(t, err)
			return s
		}
	}
	return factories
}

const sampleDoc = `{"pot":0,"currentTurn":-1,"players":[{"id":"p0","chips":100},{"id":"p1","chips":100}]}`

func TestStoreDrivers(t *testing.T) {
	for name, factory := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("create and get", func(t *testing.T) {
				s := factory(t)
				defer s.Close()
				ctx := context.Background()

				snap, err := s.Create(ctx, "t1", []byte(sampleDoc))
				require.NoError(t, err)
				assert.Equal(t, "t1", snap.ID)
				assert.EqualValues(t, 1, snap.Version)

				got, err := s.Get(ctx, "t1")
				require.NoError(t, err)
				assert.EqualValues(t, 1, got.Version)
				assert.JSONEq(t, `{"id":"t1","version":1,"pot":0,"currentTurn":-1,"players":[{"id":"p0","chips":100},{"id":"p1","chips":100}]}`, string(got.Data))

				_, err = s.Create(ctx, "t1", []byte(sampleDoc))
				assert.ErrorIs(t, err, ErrExists)

				_, err = s.Get(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("conditional update", func(t *testing.T) {
				s := factory(t)
				defer s.Close()
				ctx := context.Background()

				_, err := s.Create(ctx, "t1", []byte(sampleDoc))
				require.NoError(t, err)

				snap, err := s.Update(ctx, "t1", 1, Updates{
					"pot":             3,
					"players/1/chips": 97,
				})
				require.NoError(t, err)
				assert.EqualValues(t, 2, snap.Version)

				var doc struct {
					Version int64 `json:"version"`
					Pot     int   `json:"pot"`
					Players []struct {
						Chips int `json:"chips"`
					} `json:"players"`
				}
				got, err := s.Get(ctx, "t1")
				require.NoError(t, err)
				require.NoError(t, got.Decode(&doc))
				assert.EqualValues(t, 2, doc.Version)
				assert.Equal(t, 3, doc.Pot)
				assert.Equal(t, 97, doc.Players[1].Chips)
				assert.Equal(t, 100, doc.Players[0].Chips)

				// A writer holding the old version loses
				_, err = s.Update(ctx, "t1", 1, Updates{"pot": 99})
				assert.ErrorIs(t, err, ErrVersionConflict)
				got, err = s.Get(ctx, "t1")
				require.NoError(t, err)
				assert.EqualValues(t, 2, got.Version)

				_, err = s.Update(ctx, "missing", 1, Updates{"pot": 1})
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("invalid path leaves document alone", func(t *testing.T) {
				s := factory(t)
				defer s.Close()
				ctx := context.Background()

				_, err := s.Create(ctx, "t1", []byte(sampleDoc))
				require.NoError(t, err)

				_, err = s.Update(ctx, "t1", 1, Updates{"pot": 5, "players/9/chips": 1})
				assert.ErrorIs(t, err, ErrInvalidPath)

				got, err := s.Get(ctx, "t1")
				require.NoError(t, err)
				assert.EqualValues(t, 1, got.Version)
			})

			t.Run("subscribe", func(t *testing.T) {
				s := factory(t)
				defer s.Close()
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()

				_, err := s.Create(ctx, "t1", []byte(sampleDoc))
				require.NoError(t, err)

				ch, err := s.Subscribe(ctx, "t1")
				require.NoError(t, err)

				first := receive(t, ch)
				assert.EqualValues(t, 1, first.Version)

				_, err = s.Update(ctx, "t1", 1, Updates{"pot": 3})
				require.NoError(t, err)
				second := receive(t, ch)
				assert.EqualValues(t, 2, second.Version)

				cancel()
				assertClosed(t, ch)
			})

			t.Run("subscribe to missing table", func(t *testing.T) {
				s := factory(t)
				defer s.Close()
				_, err := s.Subscribe(context.Background(), "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("concurrent writers", func(t *testing.T) {
				s := factory(t)
				defer s.Close()
				ctx := context.Background()

				_, err := s.Create(ctx, "t1", []byte(sampleDoc))
				require.NoError(t, err)

				const writers = 8
				var wg sync.WaitGroup
				var mu sync.Mutex
				wins, conflicts := 0, 0
				for i := 0; i < writers; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						_, err := s.Update(ctx, "t1", 1, Updates{"pot": i})
						mu.Lock()
						defer mu.Unlock()
						switch {
						case err == nil:
							wins++
						case errors.Is(err, ErrVersionConflict):
							conflicts++
						default:
							t.Errorf("unexpected error: %v", err)
						}
					}(i)
				}
				wg.Wait()

				assert.Equal(t, 1, wins, "exactly one writer commits version 2")
				assert.Equal(t, writers-1, conflicts)
			})
		})
	}
}

func TestFileStoreSeesOtherProcesses(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader, err := NewFile(dir, 5*time.Millisecond, WithLogger(testLogger()))
	require.NoError(t, err)
	writer, err := NewFile(dir, 5*time.Millisecond, WithLogger(testLogger()))
	require.NoError(t, err)

	_, err = writer.Create(ctx, "t1", []byte(sampleDoc))
	require.NoError(t, err)

	ch, err := reader.Subscribe(ctx, "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, receive(t, ch).Version)

	_, err = writer.Update(ctx, "t1", 1, Updates{"pot": 3})
	require.NoError(t, err)
	assert.EqualValues(t, 2, receive(t, ch).Version)
}

func TestRedisStoreSeesOtherClients(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader, err := NewRedis(ctx, mr.Addr(), 0, WithLogger(testLogger()))
	require.NoError(t, err)
	defer reader.Close()
	writer, err := NewRedis(ctx, mr.Addr(), 0, WithLogger(testLogger()))
	require.NoError(t, err)
	defer writer.Close()

	_, err = writer.Create(ctx, "t1", []byte(sampleDoc))
	require.NoError(t, err)

	ch, err := reader.Subscribe(ctx, "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, receive(t, ch).Version)

	_, err = writer.Update(ctx, "t1", 1, Updates{"pot": 3})
	require.NoError(t, err)
	assert.EqualValues(t, 2, receive(t, ch).Version)
}

func TestRedisUpdateConflictsWithConcurrentWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := NewRedis(ctx, mr.Addr(), 0, WithLogger(testLogger()))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Create(ctx, "t1", []byte(sampleDoc))
	require.NoError(t, err)

	// Another client bumps the version behind our back
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()
	require.NoError(t, other.Set(ctx, redisKey("t1"), `{"id":"t1","version":5}`, 0).Err())

	_, err = s.Update(ctx, "t1", 1, Updates{"pot": 3})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "etcd"})
	assert.Error(t, err)

	s, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func assertClosed(t *testing.T, ch <-chan Snapshot) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription not closed")
		}
	}
}
