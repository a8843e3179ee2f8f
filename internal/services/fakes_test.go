package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"task-manager/server/internal/models"
	"task-manager/server/internal/store"
)

// memStore is an in-memory UserStore and TaskStore.
type memStore struct {
	mu     sync.Mutex
	nextID int
	users  []models.User
	tasks  []models.Task

	failWrites   error
	setIfCalls   int
	insertUserFn func(*models.User) error
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *memStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) InsertUser(_ context.Context, user *models.User) (store.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertUserFn != nil {
		if err := m.insertUserFn(user); err != nil {
			return store.InsertResult{}, err
		}
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.InsertResult{}, store.ErrDuplicate
		}
	}
	user.ID = m.id()
	m.users = append(m.users, *user)
	return store.InsertResult{Acknowledged: true, InsertedID: user.ID}, nil
}

func (m *memStore) ListUsers(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.User(nil), m.users...), nil
}

func (m *memStore) InsertTask(_ context.Context, task *models.Task) (store.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ID = m.id()
	m.tasks = append(m.tasks, *task)
	return store.InsertResult{Acknowledged: true, InsertedID: task.ID}, nil
}

func (m *memStore) FindTasksByUser(_ context.Context, userID string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) task(id string) *models.Task {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return &m.tasks[i]
		}
	}
	return nil
}

func (m *memStore) UpdateCategory(_ context.Context, id string, category models.Category) (store.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return store.UpdateResult{}, m.failWrites
	}
	t := m.task(id)
	if t == nil {
		return store.UpdateResult{Acknowledged: true}, nil
	}
	res := store.UpdateResult{Acknowledged: true, MatchedCount: 1}
	if t.Category != category {
		t.Category = category
		res.ModifiedCount = 1
	}
	return res, nil
}

func (m *memStore) SetCategoryIf(_ context.Context, id string, expected, next models.Category) (store.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setIfCalls++
	if m.failWrites != nil {
		return store.UpdateResult{}, m.failWrites
	}
	t := m.task(id)
	if t == nil || t.Category != expected {
		return store.UpdateResult{Acknowledged: true}, nil
	}
	t.Category = next
	return store.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
}

func (m *memStore) DeleteTask(_ context.Context, id string) (store.DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return store.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
		}
	}
	return store.DeleteResult{Acknowledged: true}, nil
}

func (m *memStore) storedCategory(id string) models.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.task(id); t != nil {
		return t.Category
	}
	return ""
}

var errStoreDown = errors.New("store down")
