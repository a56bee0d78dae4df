package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"docchat-backend/internal/llm"
	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
)

// fakeTurnStore is an in-memory TurnStore. Message timestamps advance on a
// synthetic clock and seq increments per insert, matching the ordering
// guarantees of the real schema.
type fakeTurnStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID]*models.Message
	clock         int64
	seq           int64

	failCreateMessage bool
	// failAssistantOnly makes only assistant inserts fail, so the user
	// message path stays observable.
	failAssistantOnly bool
}

func newFakeTurnStore() *fakeTurnStore {
	return &fakeTurnStore{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID]*models.Message),
	}
}

func (f *fakeTurnStore) tick() time.Time {
	f.clock++
	return time.Unix(0, f.clock*int64(time.Millisecond)).UTC()
}

func (f *fakeTurnStore) CreateConversation(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	c := &models.Conversation{ID: arg.ID, UserID: arg.UserID, Title: arg.Title, CreatedAt: now, UpdatedAt: now}
	f.conversations[c.ID] = c
	return copied(c), nil
}

func (f *fakeTurnStore) GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copied(c), nil
}

func (f *fakeTurnStore) ListConversationsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTurnStore) UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = f.tick()
	return copied(c), nil
}

func (f *fakeTurnStore) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.conversations, id)
	for mid, m := range f.messages {
		if m.ConversationID == id {
			delete(f.messages, mid)
		}
	}
	return nil
}

func (f *fakeTurnStore) CreateMessage(ctx context.Context, arg store.CreateMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateMessage {
		return nil, errors.New("insert failed")
	}
	if f.failAssistantOnly && arg.Role == models.RoleAssistant {
		return nil, errors.New("insert failed")
	}
	now := f.tick()
	f.seq++
	m := &models.Message{
		ID:             arg.ID,
		ConversationID: arg.ConversationID,
		Seq:            f.seq,
		Role:           arg.Role,
		Content:        arg.Content,
		AttachedFile:   arg.AttachedFile,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.messages[m.ID] = m
	if c, ok := f.conversations[arg.ConversationID]; ok {
		c.UpdatedAt = now
	}
	return copied(m), nil
}

func (f *fakeTurnStore) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copied(m), nil
}

func (f *fakeTurnStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orderedLocked(conversationID), nil
}

func (f *fakeTurnStore) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.orderedLocked(conversationID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeTurnStore) UpdateMessageContent(ctx context.Context, id uuid.UUID, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m.Content = content
	m.UpdatedAt = f.tick()
	return copied(m), nil
}

func (f *fakeTurnStore) DeleteMessagesAfter(ctx context.Context, conversationID uuid.UUID, after time.Time, afterSeq int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, m := range f.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if m.CreatedAt.After(after) || (m.CreatedAt.Equal(after) && m.Seq > afterSeq) {
			delete(f.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeTurnStore) orderedLocked(conversationID uuid.UUID) []models.Message {
	var out []models.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func copied[T any](v *T) *T {
	c := *v
	return &c
}

// fakeGenerator replays a scripted sequence of chunks. streamErr fails the
// initial call; chunkErr terminates the stream after the scripted text.
type fakeGenerator struct {
	chunks    []string
	streamErr error
	chunkErr  error
	lastParts []llm.Part
}

func (g *fakeGenerator) Stream(ctx context.Context, parts []llm.Part) (<-chan llm.Chunk, error) {
	g.lastParts = parts
	if g.streamErr != nil {
		return nil, g.streamErr
	}
	ch := make(chan llm.Chunk, len(g.chunks)+1)
	for _, c := range g.chunks {
		ch <- llm.Chunk{Text: c}
	}
	if g.chunkErr != nil {
		ch <- llm.Chunk{Err: g.chunkErr}
	}
	close(ch)
	return ch, nil
}

// collectStream records everything the turn pipeline hands the transport.
type collectStream struct {
	conversationID uuid.UUID
	resolvedCount  int
	chunks         []string
	chunkErr       error
}

func (s *collectStream) ConversationResolved(conversationID uuid.UUID) error {
	s.conversationID = conversationID
	s.resolvedCount++
	return nil
}

func (s *collectStream) Chunk(text string) error {
	if s.chunkErr != nil {
		return s.chunkErr
	}
	s.chunks = append(s.chunks, text)
	return nil
}

// fakeFileStore is an in-memory FileStore enforcing the forward-only
// status machine.
type fakeFileStore struct {
	mu      sync.Mutex
	uploads map[uuid.UUID]*models.FileUpload

	failCreate bool
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{uploads: make(map[uuid.UUID]*models.FileUpload)}
}

func (f *fakeFileStore) CreateFileUpload(ctx context.Context, arg store.CreateFileUploadParams) (*models.FileUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, errors.New("insert failed")
	}
	u := &models.FileUpload{
		ID:               arg.ID,
		UserID:           arg.UserID,
		ConversationID:   arg.ConversationID,
		FileName:         arg.FileName,
		FileType:         arg.FileType,
		FileURL:          arg.FileURL,
		ProcessingStatus: models.StatusPending,
		CreatedAt:        time.Now(),
	}
	f.uploads[u.ID] = u
	return copied(u), nil
}

func (f *fakeFileStore) GetFileUploadByID(ctx context.Context, id uuid.UUID) (*models.FileUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.uploads[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copied(u), nil
}

func (f *fakeFileStore) ListFileUploadsByUser(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) ([]models.FileUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FileUpload
	for _, u := range f.uploads {
		if u.UserID != userID {
			continue
		}
		if conversationID != nil && (u.ConversationID == nil || *u.ConversationID != *conversationID) {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeFileStore) UpdateFileUploadStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.uploads[id]
	if !ok {
		return store.ErrNotFound
	}
	// Same-status is idempotent; only actual regressions are rejected.
	if u.ProcessingStatus != status && !u.ProcessingStatus.CanTransitionTo(status) {
		return store.ErrNotFound
	}
	u.ProcessingStatus = status
	return nil
}

func (f *fakeFileStore) SetFileUploadExtractedText(ctx context.Context, id uuid.UUID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.uploads[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ExtractedText = &text
	return nil
}

// fakeBlobStore keeps uploaded bytes in a map keyed by a synthetic URL.
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (b *fakeBlobStore) Put(ctx context.Context, name, mediaType string, data []byte) (string, error) {
	if b.putErr != nil {
		return "", b.putErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	url := "blob://" + name
	b.objects[url] = data
	return url, nil
}

func (b *fakeBlobStore) Get(ctx context.Context, url string) ([]byte, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[url]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}
