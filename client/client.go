// Package client holds the per-room state a presentation layer drives: the
// in-memory task list for one open room, the active view, and the optimistic
// mutation flow against the synchronization service.
package client

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"quicktodo-api/domain"
	"quicktodo-api/storage"
)

// Store is the slice of the synchronization service the coordinator needs.
type Store interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	AddTodo(ctx context.Context, roomID, text, category, priority string) (domain.Task, error)
	UpdateTodo(ctx context.Context, roomID string, task domain.Task) error
	DeleteTodo(ctx context.Context, roomID, taskID string) error
	SaveOrder(ctx context.Context, roomID string, changed []domain.Task) error
	DeleteCategory(ctx context.Context, roomID, name string) error
}

// Room coordinates one open room. Remote calls confirm before the local state
// transition is applied; a failed call leaves local state untouched and sets a
// user-visible error message instead. Nothing is retried automatically.
//
// A Room serves a single event-driven caller and is not safe for concurrent
// use.
type Room struct {
	store  Store
	roomID string
	log    *log.Logger

	todos      []domain.Task
	categories []string
	view       domain.View
	loading    bool
	errMsg     string
}

// NewRoom creates an unloaded coordinator for the given room id.
func NewRoom(store Store, roomID string, logger *log.Logger) *Room {
	if store == nil {
		panic("client.NewRoom: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Room{
		store:  store,
		roomID: roomID,
		log:    logger,
		view:   domain.DefaultView(),
	}
}

// Load fetches the room and populates local state. A missing room returns
// storage.ErrRoomNotFound; the caller is expected to navigate away.
func (r *Room) Load(ctx context.Context) error {
	r.loading = true
	defer func() { r.loading = false }()

	room, err := r.store.GetRoom(ctx, r.roomID)
	if err != nil {
		r.log.WithError(err).WithField("roomId", r.roomID).Error("failed to load room")
		r.errMsg = "Failed to load room data"
		return err
	}
	if room == nil {
		r.errMsg = "Room not found"
		return fmt.Errorf("%w: %s", storage.ErrRoomNotFound, r.roomID)
	}
	r.todos = append([]domain.Task(nil), room.Todos...)
	r.categories = append([]string(nil), room.Categories...)
	r.errMsg = ""
	return nil
}

// RoomID returns the room this coordinator is bound to.
func (r *Room) RoomID() string { return r.roomID }

// Loading reports whether a Load is in flight.
func (r *Room) Loading() bool { return r.loading }

// Err returns the current user-visible error message, empty when healthy.
func (r *Room) Err() string { return r.errMsg }

// Todos returns a copy of the canonical in-memory task list.
func (r *Room) Todos() []domain.Task {
	return append([]domain.Task(nil), r.todos...)
}

// Categories returns a copy of the room's category labels.
func (r *Room) Categories() []string {
	return append([]string(nil), r.categories...)
}

// View returns the active filter and sort state.
func (r *Room) View() domain.View { return r.view }

// Visible projects the canonical list through the active view.
func (r *Room) Visible() []domain.Task {
	return domain.Project(r.todos, r.view)
}

// Add creates a task remotely and, once confirmed, appends it locally.
// Validation failures surface as a declined operation without touching the
// error message; remote failures set it.
func (r *Room) Add(ctx context.Context, text, category, priority string) (domain.Task, error) {
	task, err := r.store.AddTodo(ctx, r.roomID, text, category, priority)
	if err != nil {
		if errorIsValidation(err) {
			return domain.Task{}, err
		}
		r.log.WithError(err).WithField("roomId", r.roomID).Error("failed to add todo")
		r.errMsg = "Failed to add todo"
		return domain.Task{}, err
	}
	r.todos = append(r.todos, task)
	r.errMsg = ""
	return task, nil
}

// Update pushes the new representation and mirrors it locally on success.
func (r *Room) Update(ctx context.Context, task domain.Task) error {
	if err := r.store.UpdateTodo(ctx, r.roomID, task); err != nil {
		r.log.WithError(err).WithField("taskId", task.ID).Error("failed to update todo")
		r.errMsg = "Failed to update todo"
		return err
	}
	for i := range r.todos {
		if r.todos[i].ID == task.ID {
			r.todos[i] = task
			break
		}
	}
	r.errMsg = ""
	return nil
}

// ToggleComplete flips a task's completion state through the two-phase update
// path; the local flip happens only after the remote write confirms.
func (r *Room) ToggleComplete(ctx context.Context, taskID string) error {
	for _, t := range r.todos {
		if t.ID == taskID {
			t.Completed = !t.Completed
			return r.Update(ctx, t)
		}
	}
	return nil
}

// Delete removes the task remotely and then locally.
func (r *Room) Delete(ctx context.Context, taskID string) error {
	if err := r.store.DeleteTodo(ctx, r.roomID, taskID); err != nil {
		r.log.WithError(err).WithField("taskId", taskID).Error("failed to delete todo")
		r.errMsg = "Failed to delete todo"
		return err
	}
	kept := r.todos[:0]
	for _, t := range r.todos {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	r.todos = kept
	r.errMsg = ""
	return nil
}

// Reorder applies a drag gesture observed in the currently visible view: the
// canonical list is reindexed, only tasks whose position changed are pushed,
// and on success the view snaps back to manual order so the new arrangement
// is immediately visible.
func (r *Room) Reorder(ctx context.Context, draggedID string, from, to int) error {
	displayed := r.Visible()
	next := domain.Reorder(r.todos, draggedID, from, to, displayed)
	changed := domain.ChangedTasks(r.todos, next)
	if len(changed) == 0 {
		r.resetToManualOrder()
		return nil
	}
	if err := r.store.SaveOrder(ctx, r.roomID, changed); err != nil {
		r.log.WithError(err).WithField("roomId", r.roomID).Error("failed to persist new order")
		r.errMsg = "Failed to reorder todos"
		return err
	}
	r.todos = next
	r.resetToManualOrder()
	r.errMsg = ""
	return nil
}

// SetSort selects a sort mode; picking the active mode again flips the
// direction, a new mode starts ascending.
func (r *Room) SetSort(mode domain.SortMode) {
	if r.view.SortBy == mode {
		if r.view.Direction == domain.SortAsc {
			r.view.Direction = domain.SortDesc
		} else {
			r.view.Direction = domain.SortAsc
		}
		return
	}
	r.view.SortBy = mode
	r.view.Direction = domain.SortAsc
}

// SetCategoryFilter narrows the view to one category; empty shows all.
func (r *Room) SetCategoryFilter(category string) {
	r.view.Category = category
}

// SetCompletionFilter narrows the view by completion state.
func (r *Room) SetCompletionFilter(f domain.CompletionFilter) {
	r.view.Completion = f
}

// DeleteCategory removes a label from the room. The default category is
// protected, and deleting the category currently filtering the view resets
// the filter to show all tasks.
func (r *Room) DeleteCategory(ctx context.Context, name string) error {
	if name == domain.DefaultCategory {
		return nil
	}
	if err := r.store.DeleteCategory(ctx, r.roomID, name); err != nil {
		r.log.WithError(err).WithField("category", name).Error("failed to delete category")
		r.errMsg = "Failed to delete category"
		return err
	}
	kept := r.categories[:0]
	for _, c := range r.categories {
		if c != name {
			kept = append(kept, c)
		}
	}
	r.categories = kept
	if r.view.Category == name {
		r.view.Category = ""
	}
	r.errMsg = ""
	return nil
}

func (r *Room) resetToManualOrder() {
	r.view.SortBy = domain.SortByPosition
	r.view.Direction = domain.SortAsc
}

func errorIsValidation(err error) bool {
	return errors.Is(err, storage.ErrEmptyText) || errors.Is(err, storage.ErrInvalidRoomID)
}
