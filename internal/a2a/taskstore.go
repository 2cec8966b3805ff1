package a2a

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned when a task ID is unknown to the store.
var ErrTaskNotFound = errors.New("a2a: task not found")

// NewTaskID returns a fresh random task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// NewContextID returns a fresh conversation identifier.
func NewContextID() string {
	return uuid.NewString()
}

// TaskStore is a concurrency-safe in-memory store for agent-side task
// tracking. Tasks are also indexed by context so an agent can replay the
// turns of a conversation.
type TaskStore struct {
	mu        sync.RWMutex
	tasks     map[string]*Task
	byContext map[string][]string // context ID -> task IDs in insertion order
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:     make(map[string]*Task),
		byContext: make(map[string][]string),
	}
}

// Create stores task. Ids are unique for the life of the store.
func (s *TaskStore) Create(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("a2a: task %q already exists", task.ID)
	}
	s.tasks[task.ID] = &task
	if task.ContextID != "" {
		s.byContext[task.ContextID] = append(s.byContext[task.ContextID], task.ID)
	}
	return nil
}

// Get returns a copy of the task with the given id.
func (s *TaskStore) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	return cloneTask(t), nil
}

// Update runs fn on the stored task while holding the write lock.
func (s *TaskStore) Update(id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	fn(t)
	return nil
}

// Conversation returns copies of every task recorded under contextID, oldest
// first.
func (s *TaskStore) Conversation(contextID string) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byContext[contextID]
	out := make([]Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneTask(s.tasks[id]))
	}
	return out
}

// cloneTask copies src so callers never share slices or raw JSON with the
// store.
func cloneTask(src *Task) *Task {
	dst := *src
	dst.Metadata = cloneRaw(src.Metadata)
	if src.Artifacts != nil {
		dst.Artifacts = make([]Artifact, len(src.Artifacts))
		for i, a := range src.Artifacts {
			a.Parts = cloneParts(a.Parts)
			dst.Artifacts[i] = a
		}
	}
	if src.History != nil {
		dst.History = make([]Message, len(src.History))
		for i, m := range src.History {
			dst.History[i] = cloneMessage(m)
		}
	}
	if src.Status.Message != nil {
		m := cloneMessage(*src.Status.Message)
		dst.Status.Message = &m
	}
	return &dst
}

func cloneMessage(m Message) Message {
	m.Parts = cloneParts(m.Parts)
	m.Metadata = cloneRaw(m.Metadata)
	return m
}

func cloneParts(src []Part) []Part {
	if src == nil {
		return nil
	}
	dst := make([]Part, len(src))
	for i, p := range src {
		p.Data = cloneRaw(p.Data)
		dst[i] = p
	}
	return dst
}

func cloneRaw(src json.RawMessage) json.RawMessage {
	if src == nil {
		return nil
	}
	return append(json.RawMessage(nil), src...)
}
