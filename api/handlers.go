package api

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"quicktodo-api/domain"
	"quicktodo-api/storage"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store RoomStore, logs *LogBuffer, logger *log.Logger) {
	e.POST("/api/rooms", createRoom(store))
	e.GET("/api/rooms/:id", getRoom(store, logger))
	e.POST("/api/rooms/:id/todos", addTodo(store))
	e.PUT("/api/rooms/:id/todos/:todoID", updateTodo(store))
	e.DELETE("/api/rooms/:id/todos/:todoID", deleteTodo(store))
	e.POST("/api/rooms/:id/reorder", reorderTodos(store))
	e.POST("/api/rooms/:id/categories", addCategory(store))
	e.DELETE("/api/rooms/:id/categories/:name", deleteCategory(store))
	e.GET("/api/logs", getLogs(logs))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func createRoom(store RoomStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createRoomRequest
		if err := decodeBody(c, &req); err != nil && !errors.Is(err, io.EOF) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		roomID := strings.TrimSpace(req.ID)
		if roomID == "" {
			roomID = domain.RandomRoomID(domain.RandomRoomIDLength)
		}
		if err := store.CreateRoom(c.Request().Context(), roomID); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, createRoomResponse{ID: roomID})
	}
}

func getRoom(store RoomStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newRoomRequestMetrics(c.Request().Context(), logger)
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		fetchStart := time.Now()
		room, fetchErr := store.GetRoom(ctx, c.Param("id"))
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			if errors.Is(fetchErr, storage.ErrInvalidRoomID) {
				metrics.SetErrorStage("invalid_room_id")
				err = c.JSON(http.StatusBadRequest, errorResponse{Error: fetchErr.Error()})
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return err
		}
		if room == nil {
			err = c.JSON(http.StatusNotFound, errorResponse{Error: "room not found"})
			return err
		}

		view, projected := parseView(c)
		todos := room.Todos
		if projected {
			projectStart := time.Now()
			todos = domain.Project(room.Todos, view)
			metrics.ObserveProject(time.Since(projectStart))
			metrics.SetFiltered(view.Category != "" || view.Completion != domain.ShowAll)
			metrics.SetSortBy(string(view.SortBy))
		}
		metrics.SetTodosReturned(len(todos))

		resp := roomResponse{
			ID:          room.ID,
			Todos:       todos,
			Categories:  room.Categories,
			CreatedAt:   room.CreatedAt.UnixMilli(),
			LastUpdated: room.LastUpdated.UnixMilli(),
		}
		if resp.Todos == nil {
			resp.Todos = []domain.Task{}
		}
		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, resp)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func addTodo(store RoomStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req addTodoRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		task, err := store.AddTodo(c.Request().Context(), c.Param("id"), req.Text, req.Category, req.Priority)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func updateTodo(store RoomStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateTodoRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if strings.TrimSpace(req.Text) == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: storage.ErrEmptyText.Error()})
		}

		ctx := c.Request().Context()
		roomID := c.Param("id")
		task := domain.Task{
			ID:        c.Param("todoID"),
			Text:      req.Text,
			Completed: req.Completed,
			Category:  req.Category,
			Priority:  domain.ParsePriority(req.Priority),
			Position:  -1,
		}
		if req.Position != nil {
			task.Position = *req.Position
		} else if prev, err := storedPosition(ctx, store, roomID, task.ID); err != nil {
			return storeError(c, err)
		} else {
			task.Position = prev
		}
		if req.Category == "" {
			task.Category = domain.DefaultCategory
		}
		if req.CreatedAt > 0 {
			task.CreatedAt = time.UnixMilli(req.CreatedAt).UTC()
		}

		if err := store.UpdateTodo(ctx, roomID, task); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// storedPosition looks up the task's current position so a body that omits
// the field keeps the task where it is instead of unassigning it. A missing
// room or task yields the unassigned marker; the subsequent update is a no-op
// for those anyway.
func storedPosition(ctx context.Context, store RoomStore, roomID, taskID string) (int, error) {
	room, err := store.GetRoom(ctx, roomID)
	if err != nil {
		return -1, err
	}
	if room == nil {
		return -1, nil
	}
	for _, t := range room.Todos {
		if t.ID == taskID {
			return t.Position, nil
		}
	}
	return -1, nil
}

func deleteTodo(store RoomStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.DeleteTodo(c.Request().Context(), c.Param("id"), c.Param("todoID")); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// reorderTodos replays a drag gesture against the room's current canonical
// list: the caller sends the view it was displaying plus the source and
// destination indices within that view, and only tasks whose position changed
// are written back.
func reorderTodos(store RoomStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req reorderRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		ctx := c.Request().Context()
		roomID := c.Param("id")
		room, err := store.GetRoom(ctx, roomID)
		if err != nil {
			return storeError(c, err)
		}
		if room == nil {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "room not found"})
		}

		view := domain.DefaultView()
		if req.View != nil {
			view = viewFromRequest(*req.View)
		}
		displayed := domain.Project(room.Todos, view)
		next := domain.Reorder(room.Todos, req.TodoID, req.From, req.To, displayed)
		if changed := domain.ChangedTasks(room.Todos, next); len(changed) > 0 {
			if err := store.SaveOrder(ctx, roomID, changed); err != nil {
				return storeError(c, err)
			}
		}
		return c.JSON(http.StatusOK, reorderResponse{Todos: next})
	}
}

func addCategory(store RoomStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req addCategoryRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if strings.TrimSpace(req.Name) == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "category name is required"})
		}
		if err := store.AddCategory(c.Request().Context(), c.Param("id"), req.Name); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusCreated)
	}
}

func deleteCategory(store RoomStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.DeleteCategory(c.Request().Context(), c.Param("id"), c.Param("name")); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getLogs(logs *LogBuffer) echo.HandlerFunc {
	return func(c echo.Context) error {
		if logs == nil {
			return c.JSON(http.StatusOK, []logRecord{})
		}
		return c.JSON(http.StatusOK, logs.Records())
	}
}

// decodeBody decodes a size-capped JSON request body, inflating it first when
// the caller sent it gzip-encoded. A body that claims gzip but does not parse
// as gzip surfaces as a decode error, which handlers map to 400.
func decodeBody(c echo.Context, out any) error {
	var r io.Reader = c.Request().Body
	if hasGzipEncoding(c.Request().Header.Get(echo.HeaderContentEncoding)) {
		gr, err := gzip.NewReader(r)
		if err != nil {
			return err
		}
		defer gr.Close()
		r = gr
	}
	// The cap applies to the inflated stream, so a small compressed body
	// cannot expand past it.
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(r, requestBodyMaxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func hasGzipEncoding(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

func parseView(c echo.Context) (domain.View, bool) {
	view := domain.DefaultView()
	present := false
	if v := c.QueryParam("category"); v != "" {
		view.Category = v
		present = true
	}
	if v := c.QueryParam("completion"); v != "" {
		view.Completion = parseCompletion(v)
		present = true
	}
	if v := c.QueryParam("sortBy"); v != "" {
		view.SortBy = parseSortMode(v)
		present = true
	}
	if v := c.QueryParam("direction"); v == string(domain.SortDesc) {
		view.Direction = domain.SortDesc
		present = true
	}
	return view, present
}

func viewFromRequest(req viewRequest) domain.View {
	view := domain.DefaultView()
	view.Category = req.Category
	if req.Completion != "" {
		view.Completion = parseCompletion(req.Completion)
	}
	if req.SortBy != "" {
		view.SortBy = parseSortMode(req.SortBy)
	}
	if req.Direction == string(domain.SortDesc) {
		view.Direction = domain.SortDesc
	}
	return view
}

// Unknown values fall back to the defaults rather than failing the request.
func parseSortMode(v string) domain.SortMode {
	switch domain.SortMode(v) {
	case domain.SortByName, domain.SortByPriority, domain.SortByCategory, domain.SortByCompleted:
		return domain.SortMode(v)
	default:
		return domain.SortByPosition
	}
}

func parseCompletion(v string) domain.CompletionFilter {
	switch domain.CompletionFilter(v) {
	case domain.ShowActive, domain.ShowCompleted:
		return domain.CompletionFilter(v)
	default:
		return domain.ShowAll
	}
}

func storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, storage.ErrEmptyText), errors.Is(err, storage.ErrInvalidRoomID):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
