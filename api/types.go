package api

import (
	"context"

	"quicktodo-api/domain"
)

// RoomStore abstracts the room service for handlers. Both storage.Rooms and
// its cached wrapper satisfy it.
type RoomStore interface {
	CreateRoom(ctx context.Context, roomID string) error
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	AddTodo(ctx context.Context, roomID, text, category, priority string) (domain.Task, error)
	UpdateTodo(ctx context.Context, roomID string, task domain.Task) error
	DeleteTodo(ctx context.Context, roomID, taskID string) error
	SaveOrder(ctx context.Context, roomID string, changed []domain.Task) error
	AddCategory(ctx context.Context, roomID, name string) error
	DeleteCategory(ctx context.Context, roomID, name string) error
}
