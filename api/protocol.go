package api

import "quicktodo-api/domain"

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// POST /api/rooms
type createRoomRequest struct {
	ID string `json:"id,omitempty"`
}

type createRoomResponse struct {
	ID string `json:"id"`
}

// GET /api/rooms/:id
type roomResponse struct {
	ID          string        `json:"id"`
	Todos       []domain.Task `json:"todos"`
	Categories  []string      `json:"categories"`
	CreatedAt   int64         `json:"createdAt"`
	LastUpdated int64         `json:"lastUpdated"`
}

// POST /api/rooms/:id/todos
type addTodoRequest struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// PUT /api/rooms/:id/todos/:todoID
type updateTodoRequest struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Category  string `json:"category,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Position  *int   `json:"position,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// POST /api/rooms/:id/reorder
type reorderRequest struct {
	TodoID string       `json:"todoId"`
	From   int          `json:"from"`
	To     int          `json:"to"`
	View   *viewRequest `json:"view,omitempty"`
}

// viewRequest mirrors the filter and sort state the caller was displaying
// when the drag happened.
type viewRequest struct {
	Category   string `json:"category,omitempty"`
	Completion string `json:"completion,omitempty"`
	SortBy     string `json:"sortBy,omitempty"`
	Direction  string `json:"direction,omitempty"`
}

type reorderResponse struct {
	Todos []domain.Task `json:"todos"`
}

// POST /api/rooms/:id/categories
type addCategoryRequest struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
}
