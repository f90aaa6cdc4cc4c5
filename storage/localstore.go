package storage

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"quicktodo-api/domain"
)

// LocalStore is the non-networked storage variant: two keyed JSON blobs per
// list, one for tasks and one for category labels, held in a local Redis.
// Stored data may predate the canonical schema (integer ids, lowercase
// priority labels, missing fields), so loads go through the lenient decoder
// and never fail on partially-shaped blobs.
type LocalStore struct {
	redis *redis.Client
	log   *log.Logger
}

// NewLocalStore creates a LocalStore over the given Redis client.
func NewLocalStore(client *redis.Client, logger *log.Logger) *LocalStore {
	if client == nil {
		panic("storage.NewLocalStore: redis client is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LocalStore{redis: client, log: logger}
}

// LoadTodos returns the stored task list for a list id. Missing or corrupt
// data loads as an empty list; individual records are repaired field by field.
func (s *LocalStore) LoadTodos(ctx context.Context, listID string) ([]domain.Task, error) {
	data, err := s.redis.Get(ctx, localKey("todos", listID)).Bytes()
	if err == redis.Nil {
		return []domain.Task{}, nil
	}
	if err != nil {
		return nil, err
	}
	tasks, err := decodeTasks(data, true)
	if err != nil {
		s.log.WithFields(log.Fields{"list": listID, "error": err}).Warn("discarding unparseable todo blob")
		return []domain.Task{}, nil
	}
	return tasks, nil
}

// SaveTodos writes the whole task list back as one blob.
func (s *LocalStore) SaveTodos(ctx context.Context, listID string, tasks []domain.Task) error {
	data, err := encodeTasks(tasks)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, localKey("todos", listID), data, 0).Err()
}

// LoadCategories returns the stored category labels, or the default set when
// nothing usable is stored.
func (s *LocalStore) LoadCategories(ctx context.Context, listID string) ([]string, error) {
	data, err := s.redis.Get(ctx, localKey("categories", listID)).Bytes()
	if err == redis.Nil {
		return domain.DefaultCategories(), nil
	}
	if err != nil {
		return nil, err
	}
	var cats []string
	if err := json.Unmarshal(data, &cats); err != nil {
		s.log.WithFields(log.Fields{"list": listID, "error": err}).Warn("discarding unparseable category blob")
		return domain.DefaultCategories(), nil
	}
	if len(cats) == 0 {
		return domain.DefaultCategories(), nil
	}
	return cats, nil
}

// SaveCategories writes the category labels back as one blob.
func (s *LocalStore) SaveCategories(ctx context.Context, listID string, categories []string) error {
	data, err := json.Marshal(categories)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, localKey("categories", listID), data, 0).Err()
}

func localKey(kind, listID string) string {
	if listID == "" {
		listID = "default"
	}
	return kind + "-" + listID
}
