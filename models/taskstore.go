package models

import (
	"errors"
	"sort"
	"sync"
)

var ErrTaskNotFound = errors.New("任务不存在")

// TaskStore 任务存储
// 编排器和 HTTP 层共用同一个实例，实现方保证并发安全
type TaskStore interface {
	Put(task *TranslateTask) error
	Get(id string) (*TranslateTask, error)
	// Update 在持锁状态下修改任务，避免读改写竞态
	Update(id string, fn func(task *TranslateTask)) error
	Delete(id string) error
	// List 返回某会话的全部任务，按创建时间倒序
	List(sessionID string) []*TranslateTask
}

// MemoryTaskStore 内存任务存储
type MemoryTaskStore struct {
	mu       sync.RWMutex
	tasks    map[string]*TranslateTask
	sessions map[string]map[string]struct{} // sessionID -> taskID 集合
}

// NewMemoryTaskStore 创建内存任务存储
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks:    make(map[string]*TranslateTask),
		sessions: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryTaskStore) Put(task *TranslateTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = task
	if task.SessionID != "" {
		if s.sessions[task.SessionID] == nil {
			s.sessions[task.SessionID] = make(map[string]struct{})
		}
		s.sessions[task.SessionID][task.ID] = struct{}{}
	}
	return nil
}

func (s *MemoryTaskStore) Get(id string) (*TranslateTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	// 返回副本，调用方拿到的是快照
	copied := *task
	return &copied, nil
}

func (s *MemoryTaskStore) Update(id string, fn func(task *TranslateTask)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	fn(task)
	return nil
}

func (s *MemoryTaskStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	if task.SessionID != "" {
		delete(s.sessions[task.SessionID], id)
	}
	return nil
}

func (s *MemoryTaskStore) List(sessionID string) []*TranslateTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sessions[sessionID]
	result := make([]*TranslateTask, 0, len(ids))
	for id := range ids {
		if task, ok := s.tasks[id]; ok {
			copied := *task
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
