// internal/store/redis/store.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/logbook/internal/store"
)

const (
	keyPrefix      = "logbook:"
	docKeyTpl      = keyPrefix + "doc:%s"       // doc:${path}
	childrenKeyTpl = keyPrefix + "children:%s"  // children:${parent}
	indexKeyTpl    = keyPrefix + "idx:%s:%s:%s" // idx:${parent}:${field}:${value}
	maxTxRetries   = 10
)

var ErrConflict = errors.New("too many concurrent writers, update abandoned")

// RedisStore keeps each document as a hash of JSON encoded fields. Children of a
// collection are tracked in a set and configured fields get an equality index set.
type RedisStore struct {
	client  *goredis.Client
	indexed map[string]bool
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd
}

func NewRedisStore(config *store.DBConfig) (*RedisStore, error) {
	opt, err := goredis.ParseURL(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, config.IndexedFields), nil
}

func NewRedisStoreFromClient(client *goredis.Client, indexedFields []string) *RedisStore {
	indexed := make(map[string]bool, len(indexedFields))
	for _, f := range indexedFields {
		indexed[f] = true
	}
	return &RedisStore{client: client, indexed: indexed}
}

func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) NewKey() string { return uuid.NewString() }

func docKey(path string) string { return fmt.Sprintf(docKeyTpl, path) }

func childrenKey(parent string) string { return fmt.Sprintf(childrenKeyTpl, parent) }

func indexKey(parent, field, value string) string {
	return fmt.Sprintf(indexKeyTpl, parent, field, value)
}

func (s *RedisStore) read(ctx context.Context, r hashReader, path string) (store.Document, error) {
	fields, err := r.HGetAll(ctx, docKey(path)).Result()
	if err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	doc := make(store.Document, len(fields))
	for k, v := range fields {
		doc[k] = json.RawMessage(v)
	}
	return doc, nil
}

func (s *RedisStore) write(ctx context.Context, pipe goredis.Pipeliner, path string, old, next store.Document) {
	key := docKey(path)
	parent, id := store.Split(path)

	pipe.Del(ctx, key)
	if len(next) > 0 {
		values := make(map[string]interface{}, len(next))
		for k, v := range next {
			values[k] = string(v)
		}
		pipe.HSet(ctx, key, values)
	}
	pipe.SAdd(ctx, childrenKey(parent), id)

	for field := range s.indexed {
		oldValue, newValue := old.String(field), next.String(field)
		if oldValue == newValue {
			continue
		}
		if oldValue != "" {
			pipe.SRem(ctx, indexKey(parent, field, oldValue), id)
		}
		if newValue != "" {
			pipe.SAdd(ctx, indexKey(parent, field, newValue), id)
		}
	}
}

// atomically runs fn under WATCH on keys, retrying when another client wins the race.
func (s *RedisStore) atomically(ctx context.Context, keys []string, fn func(tx *goredis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (s *RedisStore) Get(ctx context.Context, path string) (store.Document, error) {
	return s.read(ctx, s.client, path)
}

func (s *RedisStore) Set(ctx context.Context, path string, doc store.Document) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	return s.atomically(ctx, []string{docKey(path)}, func(tx *goredis.Tx) error {
		old, err := s.read(ctx, tx, path)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			s.write(ctx, pipe, path, old, doc)
			return nil
		})
		return err
	})
}

func (s *RedisStore) Update(ctx context.Context, patches ...store.Patch) error {
	if len(patches) == 0 {
		return nil
	}

	var paths []string
	seen := make(map[string]bool)
	for _, p := range patches {
		if err := store.ValidatePath(p.Path); err != nil {
			return err
		}
		if !seen[p.Path] {
			seen[p.Path] = true
			paths = append(paths, p.Path)
		}
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = docKey(p)
	}

	return s.atomically(ctx, keys, func(tx *goredis.Tx) error {
		before := make(map[string]store.Document, len(paths))
		after := make(map[string]store.Document, len(paths))
		for _, p := range paths {
			doc, err := s.read(ctx, tx, p)
			if err != nil {
				return err
			}
			before[p] = doc
			after[p] = doc
		}

		for _, p := range patches {
			next, err := p.Apply(after[p.Path])
			if err != nil {
				return fmt.Errorf("failed to patch %s: %w", p.Path, err)
			}
			after[p.Path] = next
		}

		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for _, p := range paths {
				s.write(ctx, pipe, p, before[p], after[p])
			}
			return nil
		})
		return err
	})
}

func (s *RedisStore) Remove(ctx context.Context, path string) error {
	parent, id := store.Split(path)

	return s.atomically(ctx, []string{docKey(path)}, func(tx *goredis.Tx) error {
		old, err := s.read(ctx, tx, path)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, docKey(path))
			pipe.SRem(ctx, childrenKey(parent), id)
			for field := range s.indexed {
				if v := old.String(field); v != "" {
					pipe.SRem(ctx, indexKey(parent, field, v), id)
				}
			}
			return nil
		})
		return err
	})
}

func (s *RedisStore) List(ctx context.Context, parent string) (map[string]store.Document, error) {
	ids, err := s.client.SMembers(ctx, childrenKey(parent)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", parent, err)
	}
	return s.fetch(ctx, parent, ids)
}

func (s *RedisStore) FindEqual(ctx context.Context, parent, field, value string) (map[string]store.Document, error) {
	if err := store.ValidateField(field); err != nil {
		return nil, err
	}
	if !s.indexed[field] {
		// FIXME: unindexed lookups read the whole collection
		docs, err := s.List(ctx, parent)
		if err != nil {
			return nil, err
		}
		for id, doc := range docs {
			if doc.String(field) != value {
				delete(docs, id)
			}
		}
		return docs, nil
	}

	ids, err := s.client.SMembers(ctx, indexKey(parent, field, value)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", parent, field, err)
	}

	docs, err := s.fetch(ctx, parent, ids)
	if err != nil {
		return nil, err
	}
	for id, doc := range docs {
		if doc.String(field) != value {
			delete(docs, id)
		}
	}
	return docs, nil
}

func (s *RedisStore) fetch(ctx context.Context, parent string, ids []string) (map[string]store.Document, error) {
	out := make(map[string]store.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*goredis.MapStringStringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HGetAll(ctx, docKey(store.Join(parent, id)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", parent, err)
	}

	for id, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		doc := make(store.Document, len(fields))
		for k, v := range fields {
			doc[k] = json.RawMessage(v)
		}
		out[id] = doc
	}
	return out, nil
}
