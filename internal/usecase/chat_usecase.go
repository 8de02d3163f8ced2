package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"apply-codes/internal/chat"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/auth"
	"apply-codes/internal/prompts"
	"apply-codes/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ConfirmationTTL = 10 * time.Minute

	// stored history replayed into the model when the client sends none
	historyWindow = 10
)

// Stream event types.
const (
	ChatEventSession = "session"
	ChatEventToken   = "token"
	ChatEventError   = "error"
	ChatEventDone    = "done"
)

type ChatInput struct {
	Message   string
	SessionID string
	ProjectID string
	History   []llm.Message
}

type ChatMetadata struct {
	Model                 string   `json:"model"`
	Complexity            string   `json:"complexity"`
	ComplexityDescription string   `json:"complexity_description"`
	ToolsUsed             []string `json:"tools_used"`
	ProjectID             string   `json:"project_id,omitempty"`
}

type ChatResult struct {
	Response  string       `json:"response"`
	ToolCalls []any        `json:"tool_calls"`
	SessionID string       `json:"session_id"`
	Metadata  ChatMetadata `json:"metadata"`
}

type ChatEvent struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Content   string        `json:"content,omitempty"`
	Error     string        `json:"error,omitempty"`
	Metadata  *ChatMetadata `json:"metadata,omitempty"`
}

type ConfirmationInput struct {
	ToolName    string
	Parameters  map[string]any
	Description string
}

type Confirmation struct {
	ID          string         `json:"confirmation_id"`
	UserID      string         `json:"-"`
	ToolName    string         `json:"tool_name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

type ConfirmResult struct {
	Status  string `json:"status"`
	Tool    string `json:"tool"`
	Message string `json:"message"`
}

type ChatUsecase interface {
	Chat(ctx context.Context, caller auth.Identity, in ChatInput) (ChatResult, error)
	Stream(ctx context.Context, caller auth.Identity, in ChatInput, emit func(ChatEvent) error) error
	PrepareStream(ctx context.Context, caller auth.Identity, in ChatInput) (*ChatStream, error)
	CreateConfirmation(ctx context.Context, userID string, in ConfirmationInput) (Confirmation, error)
	Confirm(ctx context.Context, userID, id string, approved bool) (ConfirmResult, error)
	Capabilities() chat.Capabilities
}

type Chat struct {
	catalog *prompts.Catalog
	llm     llm.Generator
	store   store.Store
	models  chat.Models
	logger  *zap.Logger
	now     func() time.Time
}

func NewChatUsecase(catalog *prompts.Catalog, gen llm.Generator, s store.Store, models chat.Models, log *zap.Logger) *Chat {
	if models.Default == "" && gen != nil {
		models.Default = gen.DefaultModel()
	}
	return &Chat{catalog: catalog, llm: gen, store: s, models: models, logger: logger.OrNop(log), now: time.Now}
}

func (u *Chat) Capabilities() chat.Capabilities {
	return chat.Describe(u.models)
}

// turn is a prepared model call plus what is needed to record it.
type turn struct {
	sessionID  string
	req        llm.Request
	meta       ChatMetadata
	newSession bool
}

func (u *Chat) prepare(ctx context.Context, caller auth.Identity, in ChatInput) (turn, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return turn{}, invalid("message is required")
	}

	t := turn{sessionID: strings.TrimSpace(in.SessionID)}
	if t.sessionID == "" {
		t.sessionID = uuid.NewString()
		t.newSession = true
	} else if err := u.checkSession(ctx, caller.UID, t.sessionID); err != nil {
		return turn{}, err
	}

	vars := map[string]any{"userEmail": caller.Email}
	if in.ProjectID != "" {
		if err := u.projectContext(ctx, caller.UID, in.ProjectID, vars); err != nil {
			return turn{}, err
		}
	}
	rendered, err := u.catalog.Render("chatSystem", vars)
	if err != nil {
		return turn{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	history := in.History
	if len(history) == 0 && !t.newSession {
		history = u.history(ctx, t.sessionID)
	}

	complexity := chat.Classify(msg, len(history))
	model := u.models.For(complexity)
	t.req = llm.Request{
		Model:   model,
		System:  strings.TrimSpace(rendered.Text),
		Prompt:  msg,
		History: history,
	}
	t.meta = ChatMetadata{
		Model:                 model,
		Complexity:            string(complexity),
		ComplexityDescription: complexity.Description(),
		ToolsUsed:             []string{},
		ProjectID:             in.ProjectID,
	}
	return t, nil
}

func (u *Chat) Chat(ctx context.Context, caller auth.Identity, in ChatInput) (ChatResult, error) {
	t, err := u.prepare(ctx, caller, in)
	if err != nil {
		return ChatResult{}, err
	}
	resp, err := u.llm.Generate(ctx, t.req)
	if err != nil {
		return ChatResult{}, err
	}
	if resp.Model != "" {
		t.meta.Model = resp.Model
	}
	u.record(ctx, caller.UID, t, resp.Text)
	return ChatResult{Response: resp.Text, ToolCalls: []any{}, SessionID: t.sessionID, Metadata: t.meta}, nil
}

// ChatStream is a validated turn waiting to be streamed.
type ChatStream struct {
	uc     *Chat
	caller auth.Identity
	turn   turn
}

func (s *ChatStream) SessionID() string { return s.turn.sessionID }

// PrepareStream runs every check a streamed turn needs so callers can
// reject the request before any event is written.
func (u *Chat) PrepareStream(ctx context.Context, caller auth.Identity, in ChatInput) (*ChatStream, error) {
	t, err := u.prepare(ctx, caller, in)
	if err != nil {
		return nil, err
	}
	return &ChatStream{uc: u, caller: caller, turn: t}, nil
}

// Run emits session, then token events, then done. A model failure
// after the stream opened is reported as an error event.
func (s *ChatStream) Run(ctx context.Context, emit func(ChatEvent) error) error {
	u, t := s.uc, s.turn
	if err := emit(ChatEvent{Type: ChatEventSession, SessionID: t.sessionID}); err != nil {
		return err
	}
	resp, err := u.llm.Stream(ctx, t.req, func(chunk string) error {
		return emit(ChatEvent{Type: ChatEventToken, Content: chunk})
	})
	if err != nil {
		u.logger.Warn("chat stream failed", zap.String("session_id", t.sessionID), zap.Error(err))
		if emitErr := emit(ChatEvent{Type: ChatEventError, Error: "The assistant could not answer. Please try again."}); emitErr != nil {
			return emitErr
		}
		return nil
	}
	if resp.Model != "" {
		t.meta.Model = resp.Model
	}
	u.record(ctx, s.caller.UID, t, resp.Text)
	return emit(ChatEvent{Type: ChatEventDone, SessionID: t.sessionID, Metadata: &t.meta})
}

func (u *Chat) Stream(ctx context.Context, caller auth.Identity, in ChatInput, emit func(ChatEvent) error) error {
	s, err := u.PrepareStream(ctx, caller, in)
	if err != nil {
		return err
	}
	return s.Run(ctx, emit)
}

func (u *Chat) checkSession(ctx context.Context, userID, sessionID string) error {
	doc, err := u.store.Get(ctx, store.CollectionChatSessions, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		u.logger.Warn("chat session lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	if owner := doc.String("user_id"); owner != "" && owner != userID {
		return ErrForbidden
	}
	return nil
}

func (u *Chat) projectContext(ctx context.Context, userID, projectID string, vars map[string]any) error {
	doc, err := u.store.Get(ctx, store.CollectionProjects, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	if err != nil {
		return fmt.Errorf("%w: read project: %v", ErrInternal, err)
	}
	if projectOwner(doc) != userID {
		return ErrForbidden
	}
	vars["projectName"] = firstNonEmpty(doc.String("name"), doc.String("title"), projectID)
	vars["projectDescription"] = logger.TruncateForLog(doc.String("description"), 300)
	vars["searchString"] = doc.String("searchString")

	n, err := u.store.Count(ctx, store.CollectionCandidates, store.Query{Where: map[string]any{"project_id": projectID}})
	if err != nil {
		u.logger.Warn("candidate count failed", zap.String("project_id", projectID), zap.Error(err))
	}
	vars["candidateCount"] = n
	return nil
}

func (u *Chat) history(ctx context.Context, sessionID string) []llm.Message {
	docs, err := u.store.Find(ctx, store.CollectionChatMessages, store.Query{
		Where: map[string]any{"session_id": sessionID},
		Limit: historyWindow,
	})
	if err != nil {
		u.logger.Warn("chat history load failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	out := make([]llm.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, llm.Message{Role: d.String("role"), Text: d.String("content")})
	}
	// Find returns newest first
	slices.Reverse(out)
	return out
}

// record stores the session and both messages. Failures are logged only.
func (u *Chat) record(ctx context.Context, userID string, t turn, answer string) {
	now := u.now().UTC()
	session := map[string]any{
		"user_id":      userID,
		"last_message": logger.TruncateForLog(t.req.Prompt, 200),
		"model":        t.meta.Model,
		"updated_at":   now,
	}
	if t.meta.ProjectID != "" {
		session["project_id"] = t.meta.ProjectID
	}
	if t.newSession {
		session["created_at"] = now
	}
	if err := u.store.Merge(ctx, store.CollectionChatSessions, t.sessionID, session); err != nil {
		u.logger.Warn("chat session write failed", zap.String("session_id", t.sessionID), zap.Error(err))
		return
	}

	msgs := []map[string]any{
		{"session_id": t.sessionID, "user_id": userID, "role": llm.RoleUser, "content": t.req.Prompt, "created_at": now},
		{"session_id": t.sessionID, "user_id": userID, "role": llm.RoleModel, "content": answer, "model": t.meta.Model, "complexity": t.meta.Complexity, "created_at": now.Add(time.Millisecond)},
	}
	for _, m := range msgs {
		if _, err := u.store.Add(ctx, store.CollectionChatMessages, m); err != nil {
			u.logger.Warn("chat message write failed", zap.String("session_id", t.sessionID), zap.Error(err))
		}
	}
}

func (u *Chat) CreateConfirmation(ctx context.Context, userID string, in ConfirmationInput) (Confirmation, error) {
	name := strings.TrimSpace(in.ToolName)
	if name == "" {
		return Confirmation{}, invalid("tool_name is required")
	}
	tool, ok := chat.Lookup(name)
	if !ok {
		return Confirmation{}, invalid("unknown tool %q", name)
	}
	params := in.Parameters
	if params == nil {
		params = map[string]any{}
	}
	c := Confirmation{
		ID:          uuid.NewString(),
		UserID:      userID,
		ToolName:    tool.Name,
		Description: firstNonEmpty(in.Description, tool.Description),
		Parameters:  params,
		ExpiresAt:   u.now().UTC().Add(ConfirmationTTL),
	}
	err := u.store.Create(ctx, store.CollectionToolConfirmations, c.ID, map[string]any{
		"user_id":     userID,
		"tool_name":   c.ToolName,
		"description": c.Description,
		"parameters":  c.Parameters,
		"status":      "pending",
		"expires_at":  c.ExpiresAt,
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("%w: save confirmation: %v", ErrInternal, err)
	}
	return c, nil
}

type storedConfirmation struct {
	UserID    string    `json:"user_id"`
	ToolName  string    `json:"tool_name"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Confirm resolves a pending confirmation once. Expired and already
// resolved confirmations read as not found.
func (u *Chat) Confirm(ctx context.Context, userID, id string, approved bool) (ConfirmResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ConfirmResult{}, invalid("confirmation id is required")
	}
	notFound := fmt.Errorf("%w: confirmation not found or expired", ErrNotFound)

	doc, err := u.store.Get(ctx, store.CollectionToolConfirmations, id)
	if errors.Is(err, store.ErrNotFound) {
		return ConfirmResult{}, notFound
	}
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: read confirmation: %v", ErrInternal, err)
	}
	var c storedConfirmation
	if err := doc.Decode(&c); err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: decode confirmation: %v", ErrInternal, err)
	}
	if c.UserID != userID {
		return ConfirmResult{}, ErrForbidden
	}
	if c.Status != "pending" || !u.now().Before(c.ExpiresAt) {
		return ConfirmResult{}, notFound
	}

	// the marker document makes concurrent confirms race on one insert
	if err := u.store.Create(ctx, store.CollectionToolConfirmations, "consumed:"+id, map[string]any{"user_id": userID}); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ConfirmResult{}, notFound
		}
		return ConfirmResult{}, fmt.Errorf("%w: consume confirmation: %v", ErrInternal, err)
	}

	res := ConfirmResult{Status: "cancelled", Tool: c.ToolName, Message: "Action cancelled."}
	if approved {
		res.Status = "executed"
		res.Message = "Action approved."
		if tool, ok := chat.Lookup(c.ToolName); ok {
			res.Message = "Action approved. Call " + tool.Route + " to run it."
		}
	}
	if err := u.store.Update(ctx, store.CollectionToolConfirmations, id, map[string]any{"status": res.Status, "resolved_at": u.now().UTC()}); err != nil {
		u.logger.Warn("confirmation update failed", zap.String("confirmation_id", id), zap.Error(err))
	}
	return res, nil
}
