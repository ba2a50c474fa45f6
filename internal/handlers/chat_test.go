package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"hairwise/internal/llm"
	"hairwise/internal/rag"
	ragmocks "hairwise/internal/rag/mocks"
	"hairwise/internal/storage"
	storagemocks "hairwise/internal/storage/mocks"
	"hairwise/internal/vectorstore"
	vsmocks "hairwise/internal/vectorstore/mocks"
)

// chatFixture wires a real pipeline over mocked clients and stores so the
// handler is exercised end to end without network or disk.
type chatFixture struct {
	completions   *ragmocks.MockCompletionClient
	embedder      *ragmocks.MockEmbedder
	vectors       *vsmocks.MockVectorStore
	chunks        *storagemocks.MockChunkStore
	products      *storagemocks.MockProductStore
	profiles      *storagemocks.MockProfileStore
	conversations *storagemocks.MockConversationStore
	messages      *storagemocks.MockMessageStore
}

func newChatFixture(ctrl *gomock.Controller) *chatFixture {
	return &chatFixture{
		completions:   ragmocks.NewMockCompletionClient(ctrl),
		embedder:      ragmocks.NewMockEmbedder(ctrl),
		vectors:       vsmocks.NewMockVectorStore(ctrl),
		chunks:        storagemocks.NewMockChunkStore(ctrl),
		products:      storagemocks.NewMockProductStore(ctrl),
		profiles:      storagemocks.NewMockProfileStore(ctrl),
		conversations: storagemocks.NewMockConversationStore(ctrl),
		messages:      storagemocks.NewMockMessageStore(ctrl),
	}
}

// handler builds a ChatHandler without the detached side-effect workers, so
// no goroutine outlives the mock controller.
func (f *chatFixture) handler() *ChatHandler {
	pipeline := rag.NewPipeline(rag.PipelineDeps{
		Classifier:    rag.NewClassifier(f.completions, 5*time.Second),
		Retriever:     rag.NewRetriever(f.embedder, f.vectors, f.chunks, "chunks", 20, 0.65, 5),
		Matcher:       rag.NewProductMatcher(f.embedder, f.vectors, f.products, "chunks", 20, 0.65, 5),
		Synthesizer:   rag.NewSynthesizer(f.completions),
		Gate:          rag.ProductGate{MaxChars: 80, MaxWords: 12},
		Profiles:      f.profiles,
		Conversations: f.conversations,
		Messages:      f.messages,
		HistoryLimit:  10,
	})
	return NewChatHandler(pipeline, f.conversations, f.messages, nil, nil)
}

// parseSSE extracts the event envelopes from a recorded SSE body.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev sseEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("malformed SSE line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestChatHandlerMethodNotAllowed(t *testing.T) {
	h := NewChatHandler(nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestChatHandlerRequiresUser(t *testing.T) {
	h := NewChatHandler(nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestChatHandlerRejectsBadRequests(t *testing.T) {
	h := NewChatHandler(nil, nil, nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"empty message", `{"message":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			req.Header.Set("X-User-ID", "u1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestChatHandlerPipelineFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newChatFixture(ctrl)
	f.completions.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any()).Return("general_chat", nil).AnyTimes()
	f.profiles.EXPECT().Get(gomock.Any(), "u1").Return(nil, nil).AnyTimes()
	f.embedder.EXPECT().EmbedText(gomock.Any(), gomock.Any()).Return([]float32{0.1}, nil).AnyTimes()
	f.vectors.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	f.conversations.EXPECT().Get(gomock.Any(), "c1").Return(nil, errors.New("database is locked"))

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"where were we?","conversation_id":"c1"}`))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	f.handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Failed to process message") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestChatHandlerStreamsTurn(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newChatFixture(ctrl)

	message := "Can you explain in detail why my fine wavy hair always goes completely flat just a few hours after washing it in the morning?"

	f.completions.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any()).Return("general_chat", nil)
	f.profiles.EXPECT().Get(gomock.Any(), "u1").Return(nil, nil)
	f.embedder.EXPECT().EmbedText(gomock.Any(), message).Return([]float32{0.4}, nil)
	f.vectors.EXPECT().
		Search(gomock.Any(), "chunks", []float32{0.4}, 20, gomock.Any()).
		Return([]vectorstore.SearchResult{
			{PointID: "chunk1", Score: 0.9},
			{PointID: "chunk2", Score: 0.8},
		}, nil)
	f.chunks.EXPECT().GetByIDs(gomock.Any(), []string{"chunk1", "chunk2"}).
		Return([]storage.ChunkRecord{
			{ID: "chunk1", SourceType: "book", SourceName: "Chapter 1", Content: "Fine hair and product weight."},
			{ID: "chunk2", SourceType: "book", SourceName: "Chapter 7", Content: "Root volume techniques."},
		}, nil)
	f.conversations.EXPECT().Create(gomock.Any(), "u1").
		Return(&storage.Conversation{ID: "conv-new", UserID: "u1"}, nil)

	f.completions.EXPECT().
		StreamChat(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []llm.ChatMessage, callback func(string) error) error {
			if err := callback("Lighter products help [2], "); err != nil {
				return err
			}
			return callback("and avoid heavy oils [1].")
		})

	var userMsg, assistantMsg *storage.Message
	f.messages.EXPECT().Insert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg *storage.Message) error {
			if msg.Role == "user" {
				userMsg = msg
			} else {
				assistantMsg = msg
			}
			return nil
		}).
		Times(2)
	f.conversations.EXPECT().Touch(gomock.Any(), "conv-new").Return(nil)

	body, _ := json.Marshal(ChatRequest{Message: message})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(string(body)))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	f.handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	events := parseSSE(t, rec.Body.String())
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	want := []string{"conversation_id", "content_delta", "content_delta", "sources", "done"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected event sequence: %v", types)
	}

	if events[0].Data != "conv-new" {
		t.Errorf("unexpected conversation_id payload: %v", events[0].Data)
	}

	if userMsg == nil || userMsg.Content != message {
		t.Errorf("user message not persisted correctly: %+v", userMsg)
	}
	// The stored assistant message carries renumbered citations.
	if assistantMsg == nil || assistantMsg.Content != "Lighter products help [1], and avoid heavy oils [2]." {
		t.Errorf("assistant message not renumbered: %+v", assistantMsg)
	}

	// Source order follows citation appearance: chunk2 was cited first.
	sourcesJSON, _ := json.Marshal(events[3].Data)
	var sources []rag.CitationSource
	if err := json.Unmarshal(sourcesJSON, &sources); err != nil {
		t.Fatalf("failed to decode sources event: %v", err)
	}
	if len(sources) != 2 || sources[0].SourceName != "Chapter 7" || sources[0].Index != 1 {
		t.Errorf("unexpected sources payload: %+v", sources)
	}
}
