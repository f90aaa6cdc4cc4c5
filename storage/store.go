package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"quicktodo-api/domain"
)

// RoomDoc is a room document as held by the backing collection.
type RoomDoc struct {
	ID          string
	Todos       []domain.Task
	Categories  []string
	CreatedAt   time.Time
	LastUpdated time.Time
}

// DocStore is the document collection the synchronization service runs
// against: one document per room, addressed by room id. Each call is atomic
// on its own; there is no transaction spanning two calls. The array
// primitives match elements by deep value equality, exactly like the remote
// store they model. Removing a representation that drifted from what is
// stored silently matches nothing.
type DocStore interface {
	// Get returns the room document, or nil when the room does not exist.
	Get(ctx context.Context, roomID string) (*RoomDoc, error)
	// Create initializes the document; it is a no-op if the room exists.
	Create(ctx context.Context, doc RoomDoc) error
	UnionTodo(ctx context.Context, roomID string, t domain.Task) error
	RemoveTodo(ctx context.Context, roomID string, t domain.Task) error
	UnionCategory(ctx context.Context, roomID, name string) error
	RemoveCategory(ctx context.Context, roomID, name string) error
}

// ErrRoomNotFound reports an operation against a room that does not exist.
var ErrRoomNotFound = errors.New("room not found")

// casAttempts bounds the optimistic-concurrency retry loop of a single array
// primitive. Exhausting it means the document is under heavy contention.
const casAttempts = 5

var errContention = errors.New("room document contention, retries exhausted")

// TableStore implements DocStore on an Azure Storage table: one entity per
// room with PartitionKey = RowKey = room id, the todo and category arrays as
// JSON string properties. Array union/remove is a read-modify-write guarded
// by the entity ETag, making each primitive call atomic. The entity's
// server-assigned Timestamp doubles as the room's lastUpdated stamp.
type TableStore struct {
	table *aztables.Client
}

// NewTableStore creates a TableStore from the given connection string.
func NewTableStore(connStr, table string) (*TableStore, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableStore{table: svc.NewClient(table)}, nil
}

type roomEntity struct {
	aztables.Entity
	Todos      string `json:"Todos"`
	Categories string `json:"Categories"`
	CreatedAt  int64  `json:"CreatedAt"`
}

func (s *TableStore) Get(ctx context.Context, roomID string) (*RoomDoc, error) {
	resp, err := s.table.GetEntity(ctx, roomID, roomID, nil)
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var ent roomEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	return decodeRoomEntity(roomID, &ent)
}

func (s *TableStore) Create(ctx context.Context, doc RoomDoc) error {
	todos, err := encodeTasks(doc.Todos)
	if err != nil {
		return err
	}
	categories := doc.Categories
	if len(categories) == 0 {
		categories = domain.DefaultCategories()
	}
	cats, err := json.Marshal(categories)
	if err != nil {
		return err
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	payload, err := json.Marshal(map[string]any{
		"PartitionKey": doc.ID,
		"RowKey":       doc.ID,
		"Todos":        string(todos),
		"Categories":   string(cats),
		"CreatedAt":    createdAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		if hasStatus(err, http.StatusConflict) {
			return nil
		}
		return err
	}
	return nil
}

func (s *TableStore) UnionTodo(ctx context.Context, roomID string, t domain.Task) error {
	return s.mutate(ctx, roomID, func(ent *roomEntity) (bool, error) {
		tasks, err := decodeTasks([]byte(ent.Todos), false)
		if err != nil {
			return false, err
		}
		for _, existing := range tasks {
			if tasksEqual(existing, t) {
				return false, nil
			}
		}
		encoded, err := encodeTasks(append(tasks, t))
		if err != nil {
			return false, err
		}
		ent.Todos = string(encoded)
		return true, nil
	})
}

func (s *TableStore) RemoveTodo(ctx context.Context, roomID string, t domain.Task) error {
	return s.mutate(ctx, roomID, func(ent *roomEntity) (bool, error) {
		tasks, err := decodeTasks([]byte(ent.Todos), false)
		if err != nil {
			return false, err
		}
		kept := tasks[:0]
		removed := false
		for _, existing := range tasks {
			if !removed && tasksEqual(existing, t) {
				removed = true
				continue
			}
			kept = append(kept, existing)
		}
		if !removed {
			return false, nil
		}
		encoded, err := encodeTasks(kept)
		if err != nil {
			return false, err
		}
		ent.Todos = string(encoded)
		return true, nil
	})
}

func (s *TableStore) UnionCategory(ctx context.Context, roomID, name string) error {
	return s.mutate(ctx, roomID, func(ent *roomEntity) (bool, error) {
		cats, err := decodeCategories(ent.Categories)
		if err != nil {
			return false, err
		}
		for _, c := range cats {
			if c == name {
				return false, nil
			}
		}
		encoded, err := json.Marshal(append(cats, name))
		if err != nil {
			return false, err
		}
		ent.Categories = string(encoded)
		return true, nil
	})
}

func (s *TableStore) RemoveCategory(ctx context.Context, roomID, name string) error {
	return s.mutate(ctx, roomID, func(ent *roomEntity) (bool, error) {
		cats, err := decodeCategories(ent.Categories)
		if err != nil {
			return false, err
		}
		kept := cats[:0]
		removed := false
		for _, c := range cats {
			if c == name {
				removed = true
				continue
			}
			kept = append(kept, c)
		}
		if !removed {
			return false, nil
		}
		encoded, err := json.Marshal(kept)
		if err != nil {
			return false, err
		}
		ent.Categories = string(encoded)
		return true, nil
	})
}

// mutate runs one atomic read-modify-write cycle against the room entity,
// retrying on ETag mismatch. apply reports whether anything changed; an
// unchanged document is not written back.
func (s *TableStore) mutate(ctx context.Context, roomID string, apply func(*roomEntity) (bool, error)) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		resp, err := s.table.GetEntity(ctx, roomID, roomID, nil)
		if err != nil {
			if hasStatus(err, http.StatusNotFound) {
				return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
			}
			return err
		}
		var ent roomEntity
		if err := json.Unmarshal(resp.Value, &ent); err != nil {
			return err
		}
		changed, err := apply(&ent)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		payload, err := json.Marshal(map[string]any{
			"PartitionKey": ent.PartitionKey,
			"RowKey":       ent.RowKey,
			"Todos":        ent.Todos,
			"Categories":   ent.Categories,
			"CreatedAt":    ent.CreatedAt,
		})
		if err != nil {
			return err
		}
		etag := resp.ETag
		_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
			IfMatch:    &etag,
			UpdateMode: aztables.UpdateModeReplace,
		})
		if err == nil {
			return nil
		}
		if !hasStatus(err, http.StatusPreconditionFailed) {
			return err
		}
	}
	return errContention
}

func decodeRoomEntity(roomID string, ent *roomEntity) (*RoomDoc, error) {
	tasks, err := decodeTasks([]byte(ent.Todos), false)
	if err != nil {
		return nil, err
	}
	cats, err := decodeCategories(ent.Categories)
	if err != nil {
		return nil, err
	}
	doc := &RoomDoc{
		ID:          roomID,
		Todos:       tasks,
		Categories:  cats,
		LastUpdated: time.Time(ent.Timestamp),
	}
	if ent.CreatedAt > 0 {
		doc.CreatedAt = time.UnixMilli(ent.CreatedAt).UTC()
	}
	return doc, nil
}

func decodeCategories(data string) ([]string, error) {
	if data == "" {
		return domain.DefaultCategories(), nil
	}
	var cats []string
	if err := json.Unmarshal([]byte(data), &cats); err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return domain.DefaultCategories(), nil
	}
	return cats, nil
}

func hasStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}
