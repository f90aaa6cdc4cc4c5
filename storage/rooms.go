package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"quicktodo-api/domain"
)

// ErrEmptyText rejects task creation with blank or whitespace-only text. It is
// raised before any remote call.
var ErrEmptyText = errors.New("task text is empty")

// ErrInvalidRoomID rejects room ids that are not URL-safe path segments.
var ErrInvalidRoomID = errors.New("invalid room id")

// Rooms is the room synchronization service. The backing store updates
// list-valued fields only by whole-element add and remove, so a task update is
// a remove of the previous representation followed by an add of the new one.
// That is two calls with no transaction across them.
type Rooms struct {
	store DocStore
	log   *log.Logger
}

// NewRooms creates the synchronization service over the given document store.
func NewRooms(store DocStore, logger *log.Logger) *Rooms {
	if store == nil {
		panic("storage.NewRooms: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Rooms{store: store, log: logger}
}

// CreateRoom initializes a room with an empty task set and the default
// category set. Creating a room that already exists is a no-op.
func (r *Rooms) CreateRoom(ctx context.Context, roomID string) error {
	if !domain.ValidRoomID(roomID) {
		return fmt.Errorf("%w: %q", ErrInvalidRoomID, roomID)
	}
	return r.store.Create(ctx, RoomDoc{
		ID:         roomID,
		Todos:      []domain.Task{},
		Categories: domain.DefaultCategories(),
		CreatedAt:  time.Now().UTC(),
	})
}

// GetRoom fetches a room with timestamps normalized. A missing room returns
// (nil, nil); callers treat that as redirect-to-home, not an error.
func (r *Rooms) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	doc, err := r.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return &domain.Room{
		ID:          doc.ID,
		Todos:       doc.Todos,
		Categories:  doc.Categories,
		CreatedAt:   doc.CreatedAt,
		LastUpdated: doc.LastUpdated,
	}, nil
}

// AddTodo validates and persists a new task. The position is the next free
// slot at the tail of the room's current set; the id and creation time are
// assigned here.
func (r *Rooms) AddTodo(ctx context.Context, roomID, text, category, priority string) (domain.Task, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Task{}, ErrEmptyText
	}
	doc, err := r.store.Get(ctx, roomID)
	if err != nil {
		return domain.Task{}, err
	}
	if doc == nil {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	if category == "" {
		category = domain.DefaultCategory
	}
	task := domain.Task{
		ID:        uuid.NewString(),
		Text:      text,
		Category:  category,
		Priority:  domain.ParsePriority(priority),
		Position:  domain.NextPosition(doc.Todos),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := r.store.UnionTodo(ctx, roomID, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTodo replaces the stored representation of the task: remove the
// previous element, then add the new one. A task that is no longer present is
// a logged no-op, as is a missing room. The two store calls are not atomic as
// a pair; a concurrent writer between them can duplicate or drop the task.
func (r *Rooms) UpdateTodo(ctx context.Context, roomID string, task domain.Task) error {
	doc, err := r.store.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if doc == nil {
		r.log.WithFields(log.Fields{"room": roomID, "task": task.ID}).Warn("update on missing room")
		return nil
	}
	prev, ok := findTask(doc.Todos, task.ID)
	if !ok {
		r.log.WithFields(log.Fields{"room": roomID, "task": task.ID}).Warn("update on missing task")
		return nil
	}
	if err := r.store.RemoveTodo(ctx, roomID, prev); err != nil {
		return err
	}
	return r.store.UnionTodo(ctx, roomID, task)
}

// DeleteTodo removes the task with the given id. A task that is already gone
// is treated as deleted, not as an error.
func (r *Rooms) DeleteTodo(ctx context.Context, roomID, taskID string) error {
	doc, err := r.store.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	prev, ok := findTask(doc.Todos, taskID)
	if !ok {
		return nil
	}
	return r.store.RemoveTodo(ctx, roomID, prev)
}

// SaveOrder pushes reindexed tasks one by one. Writes are issued
// independently, so a failure part-way leaves earlier positions persisted;
// the first error aborts the rest and is returned.
func (r *Rooms) SaveOrder(ctx context.Context, roomID string, changed []domain.Task) error {
	for _, t := range changed {
		if err := r.UpdateTodo(ctx, roomID, t); err != nil {
			return err
		}
	}
	return nil
}

// AddCategory adds a label to the room's category set.
func (r *Rooms) AddCategory(ctx context.Context, roomID, name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	return r.store.UnionCategory(ctx, roomID, name)
}

// DeleteCategory removes a label from the room's category set. The default
// category is protected and deleting it is a no-op.
func (r *Rooms) DeleteCategory(ctx context.Context, roomID, name string) error {
	if name == domain.DefaultCategory {
		return nil
	}
	return r.store.RemoveCategory(ctx, roomID, name)
}

func findTask(tasks []domain.Task, id string) (domain.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}
