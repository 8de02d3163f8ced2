package store

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local Store. Values are normalised through JSON so
// reads observe the same shapes the Postgres store returns.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]*Document
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{docs: map[string]map[string]*Document{}, now: time.Now}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	if err := validKey(collection, id); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDoc(d), nil
}

func (m *Memory) Set(_ context.Context, collection, id string, data any) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	fields, err := toMap(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if d, ok := m.docs[collection][id]; ok {
		d.Data = fields
		d.UpdatedAt = now
		return nil
	}
	m.insertLocked(collection, id, fields, now)
	return nil
}

func (m *Memory) Merge(_ context.Context, collection, id string, fields map[string]any) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	norm, err := toMap(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if d, ok := m.docs[collection][id]; ok {
		for k, v := range norm {
			d.Data[k] = v
		}
		d.UpdatedAt = now
		return nil
	}
	m.insertLocked(collection, id, norm, now)
	return nil
}

func (m *Memory) Create(_ context.Context, collection, id string, data any) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	fields, err := toMap(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[collection][id]; ok {
		return ErrAlreadyExists
	}
	m.insertLocked(collection, id, fields, m.now().UTC())
	return nil
}

func (m *Memory) Add(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.NewString()
	if err := m.Create(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	norm, err := toMap(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range norm {
		d.Data[k] = v
	}
	d.UpdatedAt = m.now().UTC()
	return nil
}

func (m *Memory) Increment(_ context.Context, collection, id, field string, delta int64) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	path, err := splitField(field)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[collection][id]
	if !ok {
		return ErrNotFound
	}
	target := d.Data
	if len(path) == 2 {
		child, ok := target[path[0]].(map[string]any)
		if !ok {
			child = map[string]any{}
			target[path[0]] = child
		}
		target = child
	}
	leaf := path[len(path)-1]
	cur, _ := target[leaf].(float64)
	target[leaf] = cur + float64(delta)
	d.UpdatedAt = m.now().UTC()
	return nil
}

func (m *Memory) Find(_ context.Context, collection string, q Query) ([]Document, error) {
	where, err := toMap(q.Where)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for _, d := range m.docs[collection] {
		if d.CreatedAt.Before(q.Since) || !contains(d.Data, where) {
			continue
		}
		out = append(out, cloneDoc(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, collection string, q Query) (int64, error) {
	q.Limit = int(^uint(0) >> 1)
	docs, err := m.Find(ctx, collection, q)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (m *Memory) insertLocked(collection, id string, data map[string]any, now time.Time) {
	if m.docs[collection] == nil {
		m.docs[collection] = map[string]*Document{}
	}
	m.docs[collection][id] = &Document{Collection: collection, ID: id, Data: data, CreatedAt: now, UpdatedAt: now}
}

func cloneDoc(d *Document) Document {
	out := *d
	b, _ := json.Marshal(d.Data)
	out.Data = map[string]any{}
	_ = json.Unmarshal(b, &out.Data)
	return out
}

// contains mirrors JSONB @> for objects and scalars.
func contains(data, where map[string]any) bool {
	for k, want := range where {
		got, ok := data[k]
		if !ok {
			return false
		}
		wantObj, wok := want.(map[string]any)
		gotObj, gok := got.(map[string]any)
		if wok && gok {
			if !contains(gotObj, wantObj) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
