// Package session assembles the prompt context for a turn and owns the
// turn's persistence: user message at the start, assistant message once
// the loop completes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
	"github.com/xhad/askdocs/pkg/agent"
	"github.com/xhad/askdocs/pkg/llm"
)

type ManagerConfig struct {
	HistoryWindow int
}

// Manager runs complete user turns against a session. Concurrent turns
// on different sessions are fine; the caller serializes or rejects
// concurrent turns on the same session.
type Manager struct {
	config       ManagerConfig
	store        types.SessionStore
	orchestrator *agent.Orchestrator
	logger       *slog.Logger
}

func NewManager(store types.SessionStore, orchestrator *agent.Orchestrator, config ManagerConfig, logger *slog.Logger) *Manager {
	if config.HistoryWindow == 0 {
		config.HistoryWindow = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{config: config, store: store, orchestrator: orchestrator, logger: logger}
}

// SendMessage executes one streaming turn: persist and echo the user
// message, run the agentic loop, then persist the assistant message
// and emit the terminal done event.
//
// On provider failure the partial answer is discarded, an error event
// is emitted and the user message stays persisted so the turn can be
// retried. On cancellation nothing further is emitted or persisted.
func (m *Manager) SendMessage(ctx context.Context, sessionID, text string, emit agent.EmitFunc) error {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	userMessage := models.Message{
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Append(ctx, session.ID, userMessage); err != nil {
		return fmt.Errorf("failed to persist user message: %w", err)
	}
	if err := emit(agent.Event{Type: agent.EventUserMessage, Message: &userMessage}); err != nil {
		return err
	}

	history := llm.BuildHistory(session.SystemPrompt, window(session.Messages, m.config.HistoryWindow), text)

	m.logger.Info("turn started", "session_id", session.ID, "context_messages", len(history))

	turn, err := m.orchestrator.Run(ctx, history, emit)
	if err != nil {
		if canceled(ctx, err) {
			m.logger.Info("turn canceled by client", "session_id", session.ID)
			return err
		}
		m.logger.Error("turn failed", "session_id", session.ID, "error", err)
		if emitErr := emit(agent.Event{Type: agent.EventError, Err: err.Error()}); emitErr != nil {
			return emitErr
		}
		return err
	}

	if err := m.store.Append(ctx, session.ID, turn.Assistant); err != nil {
		err = fmt.Errorf("failed to persist assistant message: %w", err)
		m.logger.Error("turn failed", "session_id", session.ID, "error", err)
		if emitErr := emit(agent.Event{Type: agent.EventError, Err: err.Error()}); emitErr != nil {
			return emitErr
		}
		return err
	}

	m.logger.Info("turn completed", "session_id", session.ID,
		"iterations", turn.Iterations, "capped", turn.Capped, "sources", len(turn.Assistant.Sources))

	return emit(agent.Event{Type: agent.EventDone, Message: &turn.Assistant})
}

// window bounds how much history goes into the model context, keeping
// the most recent n messages.
func window(msgs []models.Message, n int) []models.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// canceled distinguishes the client going away from turn failures. A
// deadline on an individual provider call is not cancellation; it
// surfaces as an error event like any other stream failure.
func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
