package persistence

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/taskgraph/pkg/api"
)

// RedisRunnerStore is a RunnerStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>runner:<entity>  => gob-encoded record
//	<prefix>idx:runners      => SET of stored entity ids
type RedisRunnerStore struct {
	client *redis.Client
	prefix string
}

var _ RunnerStore = (*RedisRunnerStore)(nil)

// NewRedisRunnerStore creates a RedisRunnerStore.
// prefix is optional and defaults to "taskgraph:".
func NewRedisRunnerStore(client *redis.Client, prefix string) *RedisRunnerStore {
	if prefix == "" {
		prefix = "taskgraph:"
	}
	return &RedisRunnerStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisRunnerStore) keyRunner(entity api.EntityID) string {
	return s.prefix + "runner:" + strconv.FormatUint(uint64(entity), 10)
}

func (s *RedisRunnerStore) keyIndex() string {
	return s.prefix + "idx:runners"
}

func (s *RedisRunnerStore) SaveRunner(ctx context.Context, rec RunnerRecord) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keyRunner(rec.Entity), data, 0)
		pipe.SAdd(ctx, s.keyIndex(), strconv.FormatUint(uint64(rec.Entity), 10))
		return nil
	})
	return err
}

func (s *RedisRunnerStore) LoadRunner(ctx context.Context, entity api.EntityID) (RunnerRecord, error) {
	data, err := s.client.Get(ctx, s.keyRunner(entity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RunnerRecord{}, ErrRunnerNotFound
		}
		return RunnerRecord{}, err
	}
	return DecodeRecord(data)
}

func (s *RedisRunnerStore) DeleteRunner(ctx context.Context, entity api.EntityID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keyRunner(entity))
		pipe.SRem(ctx, s.keyIndex(), strconv.FormatUint(uint64(entity), 10))
		return nil
	})
	return err
}

func (s *RedisRunnerStore) ListRunners(ctx context.Context) ([]RunnerRecord, error) {
	ids, err := s.client.SMembers(ctx, s.keyIndex()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, err
		}
		keys = append(keys, s.keyRunner(api.EntityID(n)))
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]RunnerRecord, 0, len(vals))
	for _, v := range vals {
		// Index entries whose record is gone are skipped.
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := DecodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}
