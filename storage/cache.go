package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quicktodo-api/domain"
)

type backend interface {
	CreateRoom(ctx context.Context, roomID string) error
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	AddTodo(ctx context.Context, roomID, text, category, priority string) (domain.Task, error)
	UpdateTodo(ctx context.Context, roomID string, task domain.Task) error
	DeleteTodo(ctx context.Context, roomID, taskID string) error
	SaveOrder(ctx context.Context, roomID string, changed []domain.Task) error
	AddCategory(ctx context.Context, roomID, name string) error
	DeleteCategory(ctx context.Context, roomID, name string) error
}

// Cache wraps the room service with Redis-backed caching of whole room
// documents. Reads populate the cache; every mutating call evicts the room so
// the next read re-fetches. Redis trouble degrades to the backend silently.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base room service is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if room, ok := c.loadFromCache(ctx, roomID); ok {
		return room, nil
	}
	room, err := c.base.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room != nil {
		c.store(ctx, room)
	}
	return room, nil
}

func (c *Cache) CreateRoom(ctx context.Context, roomID string) error {
	if err := c.base.CreateRoom(ctx, roomID); err != nil {
		return err
	}
	c.evict(ctx, roomID)
	return nil
}

func (c *Cache) AddTodo(ctx context.Context, roomID, text, category, priority string) (domain.Task, error) {
	task, err := c.base.AddTodo(ctx, roomID, text, category, priority)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, roomID)
	return task, nil
}

func (c *Cache) UpdateTodo(ctx context.Context, roomID string, task domain.Task) error {
	if err := c.base.UpdateTodo(ctx, roomID, task); err != nil {
		return err
	}
	c.evict(ctx, roomID)
	return nil
}

func (c *Cache) DeleteTodo(ctx context.Context, roomID, taskID string) error {
	if err := c.base.DeleteTodo(ctx, roomID, taskID); err != nil {
		return err
	}
	c.evict(ctx, roomID)
	return nil
}

func (c *Cache) SaveOrder(ctx context.Context, roomID string, changed []domain.Task) error {
	if err := c.base.SaveOrder(ctx, roomID, changed); err != nil {
		// Positions may be partially persisted; drop the cached copy anyway.
		c.evict(ctx, roomID)
		return err
	}
	c.evict(ctx, roomID)
	return nil
}

func (c *Cache) AddCategory(ctx context.Context, roomID, name string) error {
	if err := c.base.AddCategory(ctx, roomID, name); err != nil {
		return err
	}
	c.evict(ctx, roomID)
	return nil
}

func (c *Cache) DeleteCategory(ctx context.Context, roomID, name string) error {
	if err := c.base.DeleteCategory(ctx, roomID, name); err != nil {
		return err
	}
	c.evict(ctx, roomID)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, roomID string) (*domain.Room, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, roomCacheKey(roomID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing service without failing.
			_ = c.redis.Del(ctx, roomCacheKey(roomID)).Err()
		}
		return nil, false
	}
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		_ = c.redis.Del(ctx, roomCacheKey(roomID)).Err()
		return nil, false
	}
	return &room, true
}

func (c *Cache) store(ctx context.Context, room *domain.Room) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(room)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, roomCacheKey(room.ID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, roomID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, roomCacheKey(roomID)).Result()
}

func roomCacheKey(roomID string) string {
	return "room:" + roomID
}
