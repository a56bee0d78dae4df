package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"docchat-backend/internal/extract"
	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTurnService(st *fakeTurnStore, gen *fakeGenerator) *TurnService {
	encoder := NewAttachmentEncoder(newFakeFileStore(), newFakeBlobStore(), extract.NewRegistry(), time.Second, 1<<20)
	return NewTurnService(st, gen, NewContextAssembler(st), encoder, time.Minute)
}

func TestSubmitTurn_NewConversation(t *testing.T) {
	st := newFakeTurnStore()
	gen := &fakeGenerator{chunks: []string{"Hello", ", ", "world"}}
	svc := newTestTurnService(st, gen)
	stream := &collectStream{}
	userID := uuid.New()

	assistant, err := svc.SubmitTurn(context.Background(), userID, models.TurnRequest{Prompt: "What is Go?"}, stream)
	require.NoError(t, err)

	require.Equal(t, 1, stream.resolvedCount)
	assert.NotEqual(t, uuid.Nil, stream.conversationID)
	assert.Equal(t, []string{"Hello", ", ", "world"}, stream.chunks)
	assert.Equal(t, "Hello, world", assistant.Content)
	assert.Equal(t, models.RoleAssistant, assistant.Role)

	conversation, err := st.GetConversationByID(context.Background(), stream.conversationID)
	require.NoError(t, err)
	assert.Equal(t, userID, conversation.UserID)
	assert.Equal(t, "What is Go?", conversation.Title)

	messages, err := st.ListMessages(context.Background(), conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "What is Go?", messages[0].Content)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
}

func TestSubmitTurn_TitleTruncatedToRuneLimit(t *testing.T) {
	st := newFakeTurnStore()
	gen := &fakeGenerator{chunks: []string{"ok"}}
	svc := newTestTurnService(st, gen)
	stream := &collectStream{}

	prompt := strings.Repeat("é", 60)
	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: prompt}, stream)
	require.NoError(t, err)

	conversation, err := st.GetConversationByID(context.Background(), stream.conversationID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 50)+"...", conversation.Title)
}

func TestSubmitTurn_EmptyPromptRejected(t *testing.T) {
	svc := newTestTurnService(newFakeTurnStore(), &fakeGenerator{})
	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: "   "}, &collectStream{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubmitTurn_ForeignConversationDenied(t *testing.T) {
	st := newFakeTurnStore()
	owner := uuid.New()
	conversation, err := st.CreateConversation(context.Background(), store.CreateConversationParams{
		ID: uuid.New(), UserID: owner, Title: "theirs",
	})
	require.NoError(t, err)

	svc := newTestTurnService(st, &fakeGenerator{chunks: []string{"x"}})
	_, err = svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{
		ConversationID: &conversation.ID,
		Prompt:         "hi",
	}, &collectStream{})
	assert.ErrorIs(t, err, ErrAccessDenied)

	messages, _ := st.ListMessages(context.Background(), conversation.ID)
	assert.Empty(t, messages)
}

func TestSubmitTurn_UnknownConversation(t *testing.T) {
	svc := newTestTurnService(newFakeTurnStore(), &fakeGenerator{})
	missing := uuid.New()
	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{
		ConversationID: &missing,
		Prompt:         "hi",
	}, &collectStream{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitTurn_StreamCallFailureBeforeResolve(t *testing.T) {
	st := newFakeTurnStore()
	svc := newTestTurnService(st, &fakeGenerator{streamErr: errors.New("upstream down")})
	stream := &collectStream{}

	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: "hi"}, stream)
	assert.ErrorIs(t, err, ErrUpstreamGeneration)
	// The transport was never committed to a streaming response.
	assert.Zero(t, stream.resolvedCount)
}

func TestSubmitTurn_MidStreamErrorPersistsNothingAssistant(t *testing.T) {
	st := newFakeTurnStore()
	gen := &fakeGenerator{chunks: []string{"partial "}, chunkErr: errors.New("connection reset")}
	svc := newTestTurnService(st, gen)
	stream := &collectStream{}

	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: "hi"}, stream)
	assert.ErrorIs(t, err, ErrUpstreamGeneration)

	// The user message survives; no partial assistant message exists.
	messages, _ := st.ListMessages(context.Background(), stream.conversationID)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RoleUser, messages[0].Role)
}

func TestSubmitTurn_GenerationTimeoutPersistsNothingAssistant(t *testing.T) {
	st := newFakeTurnStore()
	// A generation deadline expiring mid-stream surfaces as the terminal
	// chunk error; the partial text must not be saved as a complete answer.
	gen := &fakeGenerator{chunks: []string{"partial answer "}, chunkErr: context.DeadlineExceeded}
	svc := newTestTurnService(st, gen)
	stream := &collectStream{}

	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: "hi"}, stream)
	assert.ErrorIs(t, err, ErrUpstreamGeneration)

	messages, _ := st.ListMessages(context.Background(), stream.conversationID)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RoleUser, messages[0].Role)
}

func TestSubmitTurn_EmptyModelOutputIsUpstreamError(t *testing.T) {
	st := newFakeTurnStore()
	svc := newTestTurnService(st, &fakeGenerator{})
	stream := &collectStream{}

	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: "hi"}, stream)
	assert.ErrorIs(t, err, ErrUpstreamGeneration)

	messages, _ := st.ListMessages(context.Background(), stream.conversationID)
	require.Len(t, messages, 1)
}

func TestSubmitTurn_AssistantPersistFailureIsDistinct(t *testing.T) {
	st := newFakeTurnStore()
	st.failAssistantOnly = true
	svc := newTestTurnService(st, &fakeGenerator{chunks: []string{"answer"}})
	stream := &collectStream{}

	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: "hi"}, stream)
	assert.ErrorIs(t, err, ErrResponseNotSaved)
	assert.NotErrorIs(t, err, ErrUpstreamGeneration)

	// The caller saw the full stream even though the write was lost.
	assert.Equal(t, []string{"answer"}, stream.chunks)
	messages, _ := st.ListMessages(context.Background(), stream.conversationID)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RoleUser, messages[0].Role)
}

func TestSubmitTurn_CallerDisconnectStillPersists(t *testing.T) {
	st := newFakeTurnStore()
	gen := &fakeGenerator{chunks: []string{"part one ", "part two"}}
	svc := newTestTurnService(st, gen)
	stream := &collectStream{chunkErr: errors.New("broken pipe")}

	assistant, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: "hi"}, stream)
	require.NoError(t, err)
	assert.Equal(t, "part one part two", assistant.Content)
}

func TestSubmitTurn_ConfirmsPlaceholderTitle(t *testing.T) {
	st := newFakeTurnStore()
	userID := uuid.New()
	conversation, err := st.CreateConversation(context.Background(), store.CreateConversationParams{
		ID: uuid.New(), UserID: userID, Title: defaultConversationTitle,
	})
	require.NoError(t, err)

	svc := newTestTurnService(st, &fakeGenerator{chunks: []string{"ok"}})
	_, err = svc.SubmitTurn(context.Background(), userID, models.TurnRequest{
		ConversationID: &conversation.ID,
		Prompt:         "Summarize my notes",
	}, &collectStream{})
	require.NoError(t, err)

	updated, err := st.GetConversationByID(context.Background(), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summarize my notes", updated.Title)
}

func TestSubmitTurn_FirstTurnPromptIsRaw(t *testing.T) {
	st := newFakeTurnStore()
	gen := &fakeGenerator{chunks: []string{"ok"}}
	svc := newTestTurnService(st, gen)

	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: "Opening question"}, &collectStream{})
	require.NoError(t, err)

	require.Len(t, gen.lastParts, 1)
	assert.Equal(t, "Opening question", gen.lastParts[0].Text)
}

func TestSubmitTurn_LaterTurnsEmbedPriorContext(t *testing.T) {
	st := newFakeTurnStore()
	gen := &fakeGenerator{chunks: []string{"ok"}}
	svc := newTestTurnService(st, gen)
	stream := &collectStream{}
	userID := uuid.New()

	_, err := svc.SubmitTurn(context.Background(), userID, models.TurnRequest{Prompt: "first question"}, stream)
	require.NoError(t, err)

	_, err = svc.SubmitTurn(context.Background(), userID, models.TurnRequest{
		ConversationID: &stream.conversationID,
		Prompt:         "follow-up",
	}, stream)
	require.NoError(t, err)

	require.Len(t, gen.lastParts, 1)
	text := gen.lastParts[0].Text
	assert.Contains(t, text, "Previous conversation context:")
	assert.Contains(t, text, "User: first question")
	assert.Contains(t, text, "Assistant: ok")
	assert.Contains(t, text, "Current question: follow-up")
	// The current question appears only once, never duplicated in the block.
	assert.Equal(t, 1, strings.Count(text, "follow-up"))
}

func TestSubmitTurn_UnsupportedAttachmentRejectedBeforeSideEffects(t *testing.T) {
	st := newFakeTurnStore()
	svc := newTestTurnService(st, &fakeGenerator{chunks: []string{"ok"}})

	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{
		Prompt: "read this",
		Attachment: &models.AttachmentInput{
			FileName:  "payload.exe",
			MediaType: "application/x-msdownload",
			Data:      []byte{0x4d, 0x5a},
		},
	}, &collectStream{})
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
	assert.Empty(t, st.conversations)
}

func TestSubmitTurn_OversizedAttachmentRejected(t *testing.T) {
	st := newFakeTurnStore()
	encoder := NewAttachmentEncoder(newFakeFileStore(), newFakeBlobStore(), extract.NewRegistry(), time.Second, 8)
	svc := NewTurnService(st, &fakeGenerator{chunks: []string{"ok"}}, NewContextAssembler(st), encoder, time.Minute)

	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{
		Prompt: "read this",
		Attachment: &models.AttachmentInput{
			FileName:  "big.pdf",
			MediaType: "application/pdf",
			Data:      []byte("more than eight bytes"),
		},
	}, &collectStream{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, st.conversations)
}

func TestSubmitTurn_EncodeFailureDegradesToMention(t *testing.T) {
	st := newFakeTurnStore()
	gen := &fakeGenerator{chunks: []string{"ok"}}
	blobs := newFakeBlobStore()
	blobs.putErr = errors.New("disk full")
	encoder := NewAttachmentEncoder(newFakeFileStore(), blobs, extract.NewRegistry(), time.Second, 1<<20)
	svc := NewTurnService(st, gen, NewContextAssembler(st), encoder, time.Minute)
	stream := &collectStream{}

	assistant, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{
		Prompt: "read this",
		Attachment: &models.AttachmentInput{
			FileName:  "notes.pdf",
			MediaType: "application/pdf",
			Data:      []byte("%PDF-1.4"),
		},
	}, stream)
	require.NoError(t, err)
	assert.Equal(t, "ok", assistant.Content)

	// The model got a textual mention instead of the file content.
	require.Len(t, gen.lastParts, 2)
	assert.Contains(t, gen.lastParts[0].Text, "notes.pdf")
	assert.Contains(t, gen.lastParts[0].Text, "could not be processed")

	// The persisted user message still records the attachment descriptor.
	messages, _ := st.ListMessages(context.Background(), stream.conversationID)
	require.Len(t, messages, 2)
	require.NotNil(t, messages[0].AttachedFile)
	assert.Equal(t, "notes.pdf", messages[0].AttachedFile.Name)
}

func TestEditAndRegenerate_TruncatesAndRegenerates(t *testing.T) {
	st := newFakeTurnStore()
	gen := &fakeGenerator{chunks: []string{"first answer"}}
	svc := newTestTurnService(st, gen)
	stream := &collectStream{}
	userID := uuid.New()

	_, err := svc.SubmitTurn(context.Background(), userID, models.TurnRequest{Prompt: "original question"}, stream)
	require.NoError(t, err)
	_, err = svc.SubmitTurn(context.Background(), userID, models.TurnRequest{
		ConversationID: &stream.conversationID, Prompt: "second question",
	}, stream)
	require.NoError(t, err)

	messages, _ := st.ListMessages(context.Background(), stream.conversationID)
	require.Len(t, messages, 4)
	firstUser := messages[0]

	gen.chunks = []string{"regenerated answer"}
	editStream := &collectStream{}
	assistant, err := svc.EditAndRegenerate(context.Background(), userID, firstUser.ID, "rewritten question", editStream)
	require.NoError(t, err)
	assert.Equal(t, "regenerated answer", assistant.Content)
	assert.Equal(t, stream.conversationID, editStream.conversationID)

	messages, _ = st.ListMessages(context.Background(), stream.conversationID)
	require.Len(t, messages, 2)
	assert.Equal(t, firstUser.ID, messages[0].ID)
	assert.Equal(t, "rewritten question", messages[0].Content)
	// Identity of the edited message is preserved, not reinserted.
	assert.Equal(t, firstUser.Seq, messages[0].Seq)
	assert.True(t, messages[0].CreatedAt.Equal(firstUser.CreatedAt))
	assert.Equal(t, "regenerated answer", messages[1].Content)
}

func TestEditAndRegenerate_ReplayConverges(t *testing.T) {
	st := newFakeTurnStore()
	gen := &fakeGenerator{chunks: []string{"answer"}}
	svc := newTestTurnService(st, gen)
	stream := &collectStream{}
	userID := uuid.New()

	_, err := svc.SubmitTurn(context.Background(), userID, models.TurnRequest{Prompt: "question"}, stream)
	require.NoError(t, err)
	messages, _ := st.ListMessages(context.Background(), stream.conversationID)
	userMsgID := messages[0].ID

	_, err = svc.EditAndRegenerate(context.Background(), userID, userMsgID, "edited", &collectStream{})
	require.NoError(t, err)
	_, err = svc.EditAndRegenerate(context.Background(), userID, userMsgID, "edited", &collectStream{})
	require.NoError(t, err)

	messages, _ = st.ListMessages(context.Background(), stream.conversationID)
	require.Len(t, messages, 2)
	assert.Equal(t, "edited", messages[0].Content)
	assert.Equal(t, "answer", messages[1].Content)
}

func TestEditAndRegenerate_AssistantMessageImmutable(t *testing.T) {
	st := newFakeTurnStore()
	svc := newTestTurnService(st, &fakeGenerator{chunks: []string{"answer"}})
	stream := &collectStream{}
	userID := uuid.New()

	_, err := svc.SubmitTurn(context.Background(), userID, models.TurnRequest{Prompt: "question"}, stream)
	require.NoError(t, err)
	messages, _ := st.ListMessages(context.Background(), stream.conversationID)
	assistantID := messages[1].ID

	_, err = svc.EditAndRegenerate(context.Background(), userID, assistantID, "tampered", &collectStream{})
	assert.ErrorIs(t, err, ErrAssistantImmutable)

	// Nothing was modified or truncated.
	after, _ := st.ListMessages(context.Background(), stream.conversationID)
	require.Len(t, after, 2)
	assert.Equal(t, "answer", after[1].Content)
}

func TestEditAndRegenerate_ForeignMessageDenied(t *testing.T) {
	st := newFakeTurnStore()
	svc := newTestTurnService(st, &fakeGenerator{chunks: []string{"answer"}})
	stream := &collectStream{}

	_, err := svc.SubmitTurn(context.Background(), uuid.New(), models.TurnRequest{Prompt: "question"}, stream)
	require.NoError(t, err)
	messages, _ := st.ListMessages(context.Background(), stream.conversationID)

	_, err = svc.EditAndRegenerate(context.Background(), uuid.New(), messages[0].ID, "not mine", &collectStream{})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestEditAndRegenerate_EmptyContentRejected(t *testing.T) {
	svc := newTestTurnService(newFakeTurnStore(), &fakeGenerator{})
	_, err := svc.EditAndRegenerate(context.Background(), uuid.New(), uuid.New(), "  ", &collectStream{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "short", deriveTitle("short"))
	exact := strings.Repeat("a", 50)
	assert.Equal(t, exact, deriveTitle(exact))
	assert.Equal(t, strings.Repeat("a", 50)+"...", deriveTitle(strings.Repeat("a", 51)))
}
