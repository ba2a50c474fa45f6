package rag

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	ragmocks "hairwise/internal/rag/mocks"
	"hairwise/internal/storage"
	storagemocks "hairwise/internal/storage/mocks"
)

func memoryFixtureMessages(userTurns int) []storage.Message {
	var msgs []storage.Message
	for i := 0; i < userTurns; i++ {
		msgs = append(msgs,
			storage.Message{Role: "user", Content: "I wash my hair twice a week."},
			storage.Message{Role: "assistant", Content: "Good rhythm for your hair type."},
		)
	}
	return msgs
}

func TestMemoryExtractorSkipsShortConversations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	completions := ragmocks.NewMockCompletionClient(ctrl)
	profiles := storagemocks.NewMockProfileStore(ctrl)
	conversations := storagemocks.NewMockConversationStore(ctrl)
	messages := storagemocks.NewMockMessageStore(ctrl)

	messages.EXPECT().ListAll(gomock.Any(), "conv1").Return(memoryFixtureMessages(2), nil)
	// No further calls: too few user turns for a model call.

	e := NewMemoryExtractor(completions, profiles, conversations, messages)
	e.Extract(context.Background(), "conv1", "u1")
}

func TestMemoryExtractorSkipsWhenWatermarkCurrent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	completions := ragmocks.NewMockCompletionClient(ctrl)
	profiles := storagemocks.NewMockProfileStore(ctrl)
	conversations := storagemocks.NewMockConversationStore(ctrl)
	messages := storagemocks.NewMockMessageStore(ctrl)

	msgs := memoryFixtureMessages(3)
	messages.EXPECT().ListAll(gomock.Any(), "conv1").Return(msgs, nil)
	conversations.EXPECT().Get(gomock.Any(), "conv1").
		Return(&storage.Conversation{ID: "conv1", MemoryExtractedAtCount: len(msgs)}, nil)

	e := NewMemoryExtractor(completions, profiles, conversations, messages)
	e.Extract(context.Background(), "conv1", "u1")
}

func TestMemoryExtractorNoNewFactsAdvancesWatermarkOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	completions := ragmocks.NewMockCompletionClient(ctrl)
	profiles := storagemocks.NewMockProfileStore(ctrl)
	conversations := storagemocks.NewMockConversationStore(ctrl)
	messages := storagemocks.NewMockMessageStore(ctrl)

	msgs := memoryFixtureMessages(3)
	messages.EXPECT().ListAll(gomock.Any(), "conv1").Return(msgs, nil)
	conversations.EXPECT().Get(gomock.Any(), "conv1").
		Return(&storage.Conversation{ID: "conv1", MemoryExtractedAtCount: 0}, nil)
	profiles.EXPECT().Get(gomock.Any(), "u1").
		Return(&storage.HairProfile{UserID: "u1"}, nil)
	completions.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("NO_NEW_FACTS", nil)
	conversations.EXPECT().SetMemoryExtractedCount(gomock.Any(), "conv1", len(msgs)).Return(nil)
	// UpdateConversationMemory must not be called.

	e := NewMemoryExtractor(completions, profiles, conversations, messages)
	e.Extract(context.Background(), "conv1", "u1")
}

func TestMemoryExtractorAppendsFacts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	completions := ragmocks.NewMockCompletionClient(ctrl)
	profiles := storagemocks.NewMockProfileStore(ctrl)
	conversations := storagemocks.NewMockConversationStore(ctrl)
	messages := storagemocks.NewMockMessageStore(ctrl)

	msgs := memoryFixtureMessages(3)
	messages.EXPECT().ListAll(gomock.Any(), "conv1").Return(msgs, nil)
	conversations.EXPECT().Get(gomock.Any(), "conv1").
		Return(&storage.Conversation{ID: "conv1", MemoryExtractedAtCount: 2}, nil)
	profiles.EXPECT().Get(gomock.Any(), "u1").
		Return(&storage.HairProfile{UserID: "u1", ConversationMemory: "- Allergic to sulfates"}, nil)
	completions.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("- Washes twice a week", nil)
	profiles.EXPECT().
		UpdateConversationMemory(gomock.Any(), "u1", "- Allergic to sulfates\n- Washes twice a week").
		Return(nil)
	conversations.EXPECT().SetMemoryExtractedCount(gomock.Any(), "conv1", len(msgs)).Return(nil)

	e := NewMemoryExtractor(completions, profiles, conversations, messages)
	e.Extract(context.Background(), "conv1", "u1")
}

func TestMemoryExtractorSkipsWithoutProfile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	completions := ragmocks.NewMockCompletionClient(ctrl)
	profiles := storagemocks.NewMockProfileStore(ctrl)
	conversations := storagemocks.NewMockConversationStore(ctrl)
	messages := storagemocks.NewMockMessageStore(ctrl)

	messages.EXPECT().ListAll(gomock.Any(), "conv1").Return(memoryFixtureMessages(3), nil)
	conversations.EXPECT().Get(gomock.Any(), "conv1").
		Return(&storage.Conversation{ID: "conv1"}, nil)
	profiles.EXPECT().Get(gomock.Any(), "u1").Return(nil, nil)

	e := NewMemoryExtractor(completions, profiles, conversations, messages)
	e.Extract(context.Background(), "conv1", "u1")
}

func TestMergeMemory(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		extracted string
		want      string
	}{
		{"no existing", "", "- New fact", "- New fact"},
		{"appends with newline", "- Old fact", "- New fact", "- Old fact\n- New fact"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeMemory(tt.existing, tt.extracted); got != tt.want {
				t.Errorf("mergeMemory() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeMemoryTrimsToLastLineAtCap(t *testing.T) {
	line := "- " + strings.Repeat("x", 98) // 100 bytes per line
	existing := strings.TrimSuffix(strings.Repeat(line+"\n", 19), "\n")

	merged := mergeMemory(existing, line+" overflowing well past the cap")

	if len(merged) > memoryHardCap {
		t.Fatalf("merged memory exceeds cap: %d bytes", len(merged))
	}
	// The trim must end on a complete line, never mid-bullet.
	for _, l := range strings.Split(merged, "\n") {
		if !strings.HasPrefix(l, "- ") {
			t.Errorf("trimmed memory contains a broken line: %q", l)
		}
	}
}
