package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"quicktodo-api/domain"
	"quicktodo-api/storage"
)

type mockStore struct {
	room *domain.Room
	err  error

	createdRoom string
	added       []domain.Task
	updated     []domain.Task
	deleted     []string
	savedOrder  []domain.Task
	categories  []string
	removedCats []string
}

func (m *mockStore) CreateRoom(ctx context.Context, roomID string) error {
	if !domain.ValidRoomID(roomID) {
		return storage.ErrInvalidRoomID
	}
	m.createdRoom = roomID
	return m.err
}

func (m *mockStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return m.room, m.err
}

func (m *mockStore) AddTodo(ctx context.Context, roomID, text, category, priority string) (domain.Task, error) {
	if m.err != nil {
		return domain.Task{}, m.err
	}
	if strings.TrimSpace(text) == "" {
		return domain.Task{}, storage.ErrEmptyText
	}
	task := domain.Task{
		ID:       "generated",
		Text:     text,
		Category: category,
		Priority: domain.ParsePriority(priority),
		Position: len(m.added),
	}
	m.added = append(m.added, task)
	return task, nil
}

func (m *mockStore) UpdateTodo(ctx context.Context, roomID string, task domain.Task) error {
	m.updated = append(m.updated, task)
	return m.err
}

func (m *mockStore) DeleteTodo(ctx context.Context, roomID, taskID string) error {
	m.deleted = append(m.deleted, taskID)
	return m.err
}

func (m *mockStore) SaveOrder(ctx context.Context, roomID string, changed []domain.Task) error {
	m.savedOrder = append(m.savedOrder, changed...)
	return m.err
}

func (m *mockStore) AddCategory(ctx context.Context, roomID, name string) error {
	m.categories = append(m.categories, name)
	return m.err
}

func (m *mockStore) DeleteCategory(ctx context.Context, roomID, name string) error {
	m.removedCats = append(m.removedCats, name)
	return m.err
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger
}

func newTestServer(store RoomStore, logs *LogBuffer) *echo.Echo {
	e := echo.New()
	Register(e, store, logs, testLogger())
	return e
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sampleRoom() *domain.Room {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Room{
		ID: "family",
		Todos: []domain.Task{
			{ID: "a", Text: "Bananas", Category: "Groceries", Priority: domain.PriorityLow, Position: 0, CreatedAt: now},
			{ID: "b", Text: "Apples", Category: "Groceries", Priority: domain.PriorityUrgent, Position: 1, CreatedAt: now},
			{ID: "c", Text: "Call plumber", Category: domain.DefaultCategory, Priority: domain.PriorityNormal, Position: 2, Completed: true, CreatedAt: now},
		},
		Categories:  domain.DefaultCategories(),
		CreatedAt:   now,
		LastUpdated: now,
	}
}

func TestCreateRoomWithExplicitID(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms", `{"id":"family-list"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp createRoomResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "family-list" || store.createdRoom != "family-list" {
		t.Fatalf("room id not honored: resp=%q created=%q", resp.ID, store.createdRoom)
	}
}

func TestCreateRoomGeneratesID(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms", "")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp createRoomResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.ID) != domain.RandomRoomIDLength || !domain.ValidRoomID(resp.ID) {
		t.Fatalf("generated id invalid: %q", resp.ID)
	}
}

func TestCreateRoomRejectsInvalidID(t *testing.T) {
	e := newTestServer(&mockStore{}, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms", `{"id":"bad room!"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetRoomReturnsCanonicalOrder(t *testing.T) {
	store := &mockStore{room: sampleRoom()}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodGet, "/api/rooms/family", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp roomResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "family" || len(resp.Todos) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Todos[0].ID != "a" || resp.Todos[2].ID != "c" {
		t.Fatalf("canonical order not preserved: %+v", resp.Todos)
	}
	if resp.LastUpdated == 0 {
		t.Fatalf("lastUpdated missing")
	}
}

func TestGetRoomProjectsWithQueryParams(t *testing.T) {
	store := &mockStore{room: sampleRoom()}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodGet, "/api/rooms/family?sortBy=priority&completion=active", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp roomResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// completed "Call plumber" filtered out; Urgent apples rank first
	if len(resp.Todos) != 2 {
		t.Fatalf("expected 2 todos, got %d", len(resp.Todos))
	}
	if resp.Todos[0].ID != "b" || resp.Todos[1].ID != "a" {
		t.Fatalf("priority projection wrong: %+v", resp.Todos)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	e := newTestServer(&mockStore{room: nil}, nil)

	rec := doRequest(e, http.MethodGet, "/api/rooms/ghost", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetRoomStorageFailure(t *testing.T) {
	e := newTestServer(&mockStore{err: errors.New("table unreachable")}, nil)

	rec := doRequest(e, http.MethodGet, "/api/rooms/family", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestAddTodo(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms/family/todos", `{"text":"Milk","category":"Groceries","priority":"Urgent"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var task domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if task.Text != "Milk" || task.Priority != domain.PriorityUrgent {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestAddTodoRejectsBlankText(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms/family/todos", `{"text":"   "}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.added) != 0 {
		t.Fatalf("blank text must not reach the store")
	}
}

func TestAddTodoAcceptsGzipBody(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(`{"text":"Milk"}`)); err != nil {
		t.Fatalf("compress body: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/family/todos", &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.added) != 1 || store.added[0].Text != "Milk" {
		t.Fatalf("gzip body not inflated: %+v", store.added)
	}
}

func TestAddTodoRejectsInvalidGzipBody(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/family/todos", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.added) != 0 {
		t.Fatalf("garbage body must not reach the store")
	}
}

func TestAddTodoRejectsUnknownFields(t *testing.T) {
	e := newTestServer(&mockStore{}, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms/family/todos", `{"text":"Milk","bogus":true}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown fields, got %d", rec.Code)
	}
}

func TestUpdateTodo(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPut, "/api/rooms/family/todos/task-1", `{"text":"Oat milk","completed":true,"position":3}`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(store.updated))
	}
	got := store.updated[0]
	if got.ID != "task-1" || got.Text != "Oat milk" || !got.Completed || got.Position != 3 {
		t.Fatalf("unexpected update payload: %+v", got)
	}
	if got.Category != domain.DefaultCategory {
		t.Fatalf("empty category should default, got %q", got.Category)
	}
}

func TestUpdateTodoOmittedPositionKeepsStoredPosition(t *testing.T) {
	store := &mockStore{room: sampleRoom()}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPut, "/api/rooms/family/todos/b", `{"text":"Green apples"}`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(store.updated))
	}
	if got := store.updated[0].Position; got != 1 {
		t.Fatalf("omitted position must carry the stored value forward, got %d", got)
	}
}

func TestUpdateTodoRejectsBlankText(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPut, "/api/rooms/family/todos/task-1", `{"text":""}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.updated) != 0 {
		t.Fatalf("blank text must not reach the store")
	}
}

func TestDeleteTodoIdempotent(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodDelete, "/api/rooms/family/todos/ghost", "")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "ghost" {
		t.Fatalf("delete not forwarded: %+v", store.deleted)
	}
}

func TestReorderPersistsShiftedPositions(t *testing.T) {
	store := &mockStore{room: sampleRoom()}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms/family/reorder", `{"todoId":"c","from":2,"to":0}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp reorderResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	wantOrder := []string{"c", "a", "b"}
	for i, id := range wantOrder {
		if resp.Todos[i].ID != id || resp.Todos[i].Position != i {
			t.Fatalf("index %d: got %s@%d, want %s@%d", i, resp.Todos[i].ID, resp.Todos[i].Position, id, i)
		}
	}
	if len(store.savedOrder) != 3 {
		t.Fatalf("expected 3 shifted tasks persisted, got %d", len(store.savedOrder))
	}
}

func TestReorderAgainstSortedView(t *testing.T) {
	// Sorted by name the view shows Apples(b), Bananas(a), Call plumber(c).
	// Dragging Bananas to view index 0 resolves through canonical indices:
	// Bananas already precedes Apples canonically, so nothing moves and
	// nothing is written.
	store := &mockStore{room: sampleRoom()}
	e := newTestServer(store, nil)

	body := `{"todoId":"a","from":1,"to":0,"view":{"sortBy":"name"}}`
	rec := doRequest(e, http.MethodPost, "/api/rooms/family/reorder", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp reorderResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	wantOrder := []string{"a", "b", "c"}
	for i, id := range wantOrder {
		if resp.Todos[i].ID != id {
			t.Fatalf("index %d: got %s, want %s", i, resp.Todos[i].ID, id)
		}
	}
	if len(store.savedOrder) != 0 {
		t.Fatalf("resolved no-op must not persist anything")
	}
}

func TestReorderNoOpSkipsWrite(t *testing.T) {
	store := &mockStore{room: sampleRoom()}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms/family/reorder", `{"todoId":"a","from":0,"to":0}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.savedOrder) != 0 {
		t.Fatalf("no-op reorder must not persist anything")
	}
}

func TestReorderRoomNotFound(t *testing.T) {
	e := newTestServer(&mockStore{room: nil}, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms/ghost/reorder", `{"todoId":"a","from":0,"to":1}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAddCategory(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms/family/categories", `{"name":"Garden"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(store.categories) != 1 || store.categories[0] != "Garden" {
		t.Fatalf("category not forwarded: %+v", store.categories)
	}
}

func TestAddCategoryRejectsBlankName(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodPost, "/api/rooms/family/categories", `{"name":"  "}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteCategory(t *testing.T) {
	store := &mockStore{}
	e := newTestServer(store, nil)

	rec := doRequest(e, http.MethodDelete, "/api/rooms/family/categories/Garden", "")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(store.removedCats) != 1 || store.removedCats[0] != "Garden" {
		t.Fatalf("category delete not forwarded: %+v", store.removedCats)
	}
}

func TestGetLogsServesBufferedEntries(t *testing.T) {
	logs := NewLogBuffer(10)
	logger := log.New()
	logger.SetLevel(log.InfoLevel)
	logger.AddHook(logs)
	logger.WithField("roomId", "family").Info("room loaded")

	e := newTestServer(&mockStore{}, logs)
	rec := doRequest(e, http.MethodGet, "/api/logs", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var records []logRecord
	if err := sonic.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(records) != 1 || records[0].Message != "room loaded" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestServer(&mockStore{}, nil)

	rec := doRequest(e, http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
