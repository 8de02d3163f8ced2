package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"apply-codes/internal/chat"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChat(t *testing.T, gen *llm.Scripted) (*Chat, store.Store) {
	t.Helper()
	s := store.NewMemory()
	return NewChatUsecase(loadCatalog(t), gen, s, chat.Models{Default: "flash", Complex: "pro"}, nil), s
}

func TestChat_RecordsSessionAndHistory(t *testing.T) {
	gen := llm.NewScripted("flash", "Try (golang OR go) AND berlin.", "Sure.")
	uc, s := newChat(t, gen)
	ctx := context.Background()

	res, err := uc.Chat(ctx, alice, ChatInput{Message: "what is a boolean search?"})
	require.NoError(t, err)
	assert.Equal(t, "Try (golang OR go) AND berlin.", res.Response)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "simple", res.Metadata.Complexity)
	assert.Equal(t, "flash", res.Metadata.Model)
	assert.NotNil(t, res.ToolCalls)
	assert.Contains(t, gen.Last().System, "alice@example.com")

	session, err := s.Get(ctx, store.CollectionChatSessions, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "alice", session.String("user_id"))
	assert.EqualValues(t, 2, countDocs(t, s, store.CollectionChatMessages, map[string]any{"session_id": res.SessionID}))

	_, err = uc.Chat(ctx, alice, ChatInput{Message: "thanks", SessionID: res.SessionID})
	require.NoError(t, err)
	history := gen.Last().History
	require.Len(t, history, 2)
	assert.ElementsMatch(t, []llm.Message{
		{Role: llm.RoleUser, Text: "what is a boolean search?"},
		{Role: llm.RoleModel, Text: "Try (golang OR go) AND berlin."},
	}, history)
}

func TestChat_SessionBelongsToCaller(t *testing.T) {
	uc, s := newChat(t, llm.NewScripted("flash"))
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, store.CollectionChatSessions, "s1", map[string]any{"user_id": "bob"}))

	_, err := uc.Chat(ctx, alice, ChatInput{Message: "hi", SessionID: "s1"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestChat_ProjectContext(t *testing.T) {
	gen := llm.NewScripted("flash", "ok")
	uc, s := newChat(t, gen)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, store.CollectionProjects, "p1", map[string]any{"owner_id": "alice", "name": "Platform Hiring"}))
	require.NoError(t, s.Set(ctx, store.CollectionProjects, "p2", map[string]any{"owner_id": "bob"}))
	_, err := s.Add(ctx, store.CollectionCandidates, map[string]any{"project_id": "p1"})
	require.NoError(t, err)

	res, err := uc.Chat(ctx, alice, ChatInput{Message: "who do we have?", ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", res.Metadata.ProjectID)
	assert.Contains(t, gen.Last().System, "Platform Hiring")

	_, err = uc.Chat(ctx, alice, ChatInput{Message: "hi", ProjectID: "p2"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = uc.Chat(ctx, alice, ChatInput{Message: "hi", ProjectID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChat_RequiresMessage(t *testing.T) {
	uc, _ := newChat(t, llm.NewScripted("flash"))
	_, err := uc.Chat(context.Background(), alice, ChatInput{Message: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChatStream_EventOrder(t *testing.T) {
	uc, _ := newChat(t, llm.NewScripted("flash", "one two three"))

	var events []ChatEvent
	err := uc.Stream(context.Background(), alice, ChatInput{Message: "hi"}, func(e ChatEvent) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, ChatEventSession, events[0].Type)
	assert.NotEmpty(t, events[0].SessionID)

	var text string
	for _, e := range events[1:4] {
		assert.Equal(t, ChatEventToken, e.Type)
		text += e.Content
	}
	assert.Equal(t, "one two three", text)
	assert.Equal(t, ChatEventDone, events[4].Type)
	require.NotNil(t, events[4].Metadata)
	assert.Equal(t, events[0].SessionID, events[4].SessionID)
}

func TestChatStream_ModelFailureIsAnEvent(t *testing.T) {
	uc, s := newChat(t, llm.NewScripted("flash").Fail(errors.New("overloaded")))

	var types []string
	err := uc.Stream(context.Background(), alice, ChatInput{Message: "hi"}, func(e ChatEvent) error {
		types = append(types, e.Type)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ChatEventSession, ChatEventError}, types)
	assert.EqualValues(t, 0, countDocs(t, s, store.CollectionChatMessages, nil))
}

func TestConfirmation_Lifecycle(t *testing.T) {
	uc, _ := newChat(t, llm.NewScripted("flash"))
	ctx := context.Background()

	_, err := uc.CreateConfirmation(ctx, "alice", ConfirmationInput{ToolName: "drop_database"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	c, err := uc.CreateConfirmation(ctx, "alice", ConfirmationInput{ToolName: "send_email", Parameters: map[string]any{"to": "ada@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "Send a single email", c.Description)
	assert.WithinDuration(t, time.Now().Add(ConfirmationTTL), c.ExpiresAt, time.Minute)

	_, err = uc.Confirm(ctx, "bob", c.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := uc.Confirm(ctx, "alice", c.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "executed", res.Status)
	assert.Equal(t, "send_email", res.Tool)
	assert.Contains(t, res.Message, "/sendEmail")

	_, err = uc.Confirm(ctx, "alice", c.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = uc.Confirm(ctx, "alice", "nope", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmation_Expires(t *testing.T) {
	uc, _ := newChat(t, llm.NewScripted("flash"))
	ctx := context.Background()

	c, err := uc.CreateConfirmation(ctx, "alice", ConfirmationInput{ToolName: "send_email"})
	require.NoError(t, err)

	uc.now = func() time.Time { return time.Now().Add(ConfirmationTTL + time.Second) }
	_, err = uc.Confirm(ctx, "alice", c.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmation_ConsumedOnce(t *testing.T) {
	uc, _ := newChat(t, llm.NewScripted("flash"))
	ctx := context.Background()
	c, err := uc.CreateConfirmation(ctx, "alice", ConfirmationInput{ToolName: "send_campaign_email"})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := uc.Confirm(ctx, "alice", c.ID, false); err == nil {
				mu.Lock()
				resolved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, resolved)
}

func TestCapabilities(t *testing.T) {
	uc, _ := newChat(t, llm.NewScripted("flash"))
	caps := uc.Capabilities()
	assert.Equal(t, "flash", caps.Models["simple"])
	assert.Equal(t, "pro", caps.Models["complex"])
	assert.Equal(t, len(chat.Tools()), caps.ToolCount)
}
