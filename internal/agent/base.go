// Package agent hosts A2A agents. BaseAgent carries the task lifecycle;
// ConsortiumAgent serves a saved consortium so other clients, including
// another consortium, can use it as a single model.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dusk-indust/consortium/internal/a2a"
)

// Agent is a hosted agent: a card, a task handler and a server lifecycle.
type Agent interface {
	Card() a2a.AgentCard
	HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error)
	Start(ctx context.Context, addr string) error
	Stop(ctx context.Context) error
}

var (
	_ Agent       = (*BaseAgent)(nil)
	_ a2a.Handler = (*BaseAgent)(nil)
)

// ProcessFunc handles one incoming message. It receives the task (in WORKING
// state) and may set task.Metadata; the returned artifacts are attached to
// the completed task.
type ProcessFunc func(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error)

// BaseAgent composes an A2A server and task store, implementing both the
// Agent and a2a.Handler interfaces around a ProcessFunc.
type BaseAgent struct {
	server  *a2a.Server
	store   *a2a.TaskStore
	card    a2a.AgentCard
	process ProcessFunc
}

// NewBaseAgent creates a BaseAgent with the given card and process function.
func NewBaseAgent(card a2a.AgentCard, process ProcessFunc) *BaseAgent {
	b := &BaseAgent{
		store:   a2a.NewTaskStore(),
		card:    card,
		process: process,
	}
	b.server = a2a.NewServer(card, b)
	return b
}

// Card returns the agent's A2A Agent Card.
func (b *BaseAgent) Card() a2a.AgentCard {
	return b.card
}

// HandleTask records task, runs the process function on msg, and returns the
// task in its terminal state. A process error is returned alongside the
// failed task.
func (b *BaseAgent) HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error) {
	task.Status = status(a2a.TaskStateSubmitted, "")
	task.History = append(task.History, msg)
	if err := b.store.Create(task); err != nil {
		return nil, fmt.Errorf("agent: create task: %w", err)
	}
	if err := b.transition(task.ID, status(a2a.TaskStateWorking, ""), nil); err != nil {
		return nil, err
	}

	artifacts, procErr := b.process(ctx, &task, msg)
	if procErr != nil {
		_ = b.transition(task.ID, status(a2a.TaskStateFailed, procErr.Error()), nil)
		failed, _ := b.store.Get(task.ID)
		return failed, procErr
	}

	if err := b.transition(task.ID, status(a2a.TaskStateCompleted, ""), func(t *a2a.Task) {
		t.Artifacts = artifacts
		t.Metadata = task.Metadata
	}); err != nil {
		return nil, err
	}
	return b.store.Get(task.ID)
}

func (b *BaseAgent) transition(id string, st a2a.TaskStatus, also func(*a2a.Task)) error {
	err := b.store.Update(id, func(t *a2a.Task) {
		t.Status = st
		if also != nil {
			also(t)
		}
	})
	if err != nil {
		return fmt.Errorf("agent: task %s to %s: %w", id, st.State, err)
	}
	return nil
}

// status builds a fresh status; a non-empty note becomes an agent message.
func status(state a2a.TaskState, note string) a2a.TaskStatus {
	st := a2a.TaskStatus{State: state, Timestamp: time.Now()}
	if note != "" {
		st.Message = &a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart(note)}}
	}
	return st
}

// Start launches the agent's HTTP server on the given address.
func (b *BaseAgent) Start(ctx context.Context, addr string) error {
	return b.server.Start(ctx, addr)
}

// Stop gracefully shuts down the agent.
func (b *BaseAgent) Stop(ctx context.Context) error {
	return b.server.Stop(ctx)
}

// Addr returns the bound address after Start.
func (b *BaseAgent) Addr() string {
	return b.server.Addr()
}

// Routes exposes the agent's HTTP handler, for embedding or httptest.
func (b *BaseAgent) Routes() http.Handler {
	return b.server.Routes()
}

// Conversation returns the tasks recorded under contextID, oldest first.
func (b *BaseAgent) Conversation(contextID string) []a2a.Task {
	return b.store.Conversation(contextID)
}

// HandleSendMessage creates a task from the incoming message and processes
// it. A message without a context starts a new conversation.
func (b *BaseAgent) HandleSendMessage(ctx context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	contextID := req.Message.ContextID
	if contextID == "" {
		contextID = a2a.NewContextID()
	}
	msg := req.Message
	msg.ContextID = contextID

	task := a2a.Task{
		ID:        a2a.NewTaskID(),
		ContextID: contextID,
	}
	return b.HandleTask(ctx, task, msg)
}

// HandleGetTask retrieves a task by ID from the store.
func (b *BaseAgent) HandleGetTask(_ context.Context, req a2a.GetTaskRequest) (*a2a.Task, error) {
	return b.store.Get(req.ID)
}

// HandleCancelTask cancels a running task if it is not in a terminal state.
func (b *BaseAgent) HandleCancelTask(_ context.Context, req a2a.CancelTaskRequest) (*a2a.Task, error) {
	err := b.store.Update(req.ID, func(t *a2a.Task) {
		if !t.Status.State.IsTerminal() {
			t.Status = status(a2a.TaskStateCanceled, "")
		}
	})
	if err != nil {
		return nil, err
	}
	return b.store.Get(req.ID)
}

// marshalMetadata encodes task metadata, dropping it on failure.
func marshalMetadata(md map[string]any) json.RawMessage {
	data, err := json.Marshal(md)
	if err != nil {
		return nil
	}
	return data
}
