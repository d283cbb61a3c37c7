package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "acct"
	redisRecordVersion = 1
	maxRetries         = 4
)

var errUnsupportedRecord = errors.New("unsupported account record version")

type redisRecord struct {
	Version int      `json:"v"`
	Account *Account `json:"account"`
}

// RedisStore keeps each account as a JSON record with a secondary
// email index. Updates use WATCH/MULTI so concurrent writers to the same
// record never lose an update.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) idKey(id string) string {
	return redisKeyPrefix + ":" + id
}

func (s *RedisStore) emailKey(email string) string {
	return redisKeyPrefix + ":email:" + email
}

func (s *RedisStore) Create(ctx context.Context, a *Account) error {
	rec := a.Clone()
	rec.Email = NormalizeEmail(rec.Email)
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	emailKey := s.emailKey(rec.Email)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, emailKey).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrDuplicateEmail
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, emailKey, rec.ID, 0)
				pipe.Set(ctx, s.idKey(rec.ID), data, 0)
				return nil
			})
			return err
		}, emailKey)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrDuplicateEmail) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}
	return ErrConflict
}

func (s *RedisStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(NormalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.FindByID(ctx, id)
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*Account, error) {
	data, err := s.redis.Get(ctx, s.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return decodeRecord(data)
}

func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*Account, error) {
	key := s.idKey(id)

	for i := 0; i < maxRetries; i++ {
		var updated *Account
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			current, err := decodeRecord(data)
			if err != nil {
				return err
			}

			working := current.Clone()
			if err := fn(working); err != nil {
				return &fnError{err: err}
			}
			working.ID = current.ID
			working.Email = current.Email
			working.Role = current.Role

			encoded, err := encodeRecord(working)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}
			updated = working
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			var fe *fnError
			if errors.As(err, &fe) {
				return nil, fe.err
			}
			if errors.Is(err, redis.Nil) {
				return nil, ErrNotFound
			}
			if errors.Is(err, errUnsupportedRecord) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return updated, nil
	}
	return nil, ErrConflict
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// fnError carries a caller error out of the WATCH callback untouched.
type fnError struct{ err error }

func (e *fnError) Error() string { return e.err.Error() }
func (e *fnError) Unwrap() error { return e.err }

func encodeRecord(a *Account) ([]byte, error) {
	return json.Marshal(redisRecord{Version: redisRecordVersion, Account: a})
}

func decodeRecord(data []byte) (*Account, error) {
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode account record: %w", err)
	}
	if rec.Version != redisRecordVersion || rec.Account == nil {
		return nil, errUnsupportedRecord
	}
	return rec.Account, nil
}
