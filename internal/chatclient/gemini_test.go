package chatclient

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	adkmodel "google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/vitormoschetta/chatrelay/internal/model"
)

// fakeLLM responde sempre com o mesmo texto e registra o histórico recebido
type fakeLLM struct {
	reply string
	delay time.Duration

	mu       sync.Mutex
	contents []int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeLLM) Name() string { return "fake-llm" }

func (f *fakeLLM) GenerateContent(ctx context.Context, req *adkmodel.LLMRequest, stream bool) iter.Seq2[*adkmodel.LLMResponse, error] {
	return func(yield func(*adkmodel.LLMResponse, error) bool) {
		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)
		for {
			peak := f.maxInFlight.Load()
			if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
				break
			}
		}

		f.mu.Lock()
		f.contents = append(f.contents, len(req.Contents))
		f.mu.Unlock()

		if f.delay > 0 {
			time.Sleep(f.delay)
		}

		yield(&adkmodel.LLMResponse{
			Content: &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: f.reply}},
			},
		}, nil)
	}
}

func (f *fakeLLM) historyLengths() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.contents...)
}

func newInitializedGemini(t *testing.T, llm *fakeLLM) *Gemini {
	t.Helper()
	g := NewGemini(GeminiConfig{Model: "fake-llm"}, Options{}, WithModel(llm))
	require.NoError(t, g.InitSession(context.Background()))
	return g
}

func TestGemini_SendMessageBeforeInitSession(t *testing.T) {
	g := NewGemini(GeminiConfig{APIKey: "k", Model: "gemini-2.5-flash"}, Options{})

	res, err := g.SendMessage(context.Background(), "hello", model.SendOptions{})

	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrSessionNotInitialized)
	assert.Equal(t, 0, g.sessions.Len())
}

func TestGemini_ThreadsTurnsOfAConversation(t *testing.T) {
	llm := &fakeLLM{reply: "reply"}
	g := newInitializedGemini(t, llm)
	ctx := context.Background()

	first, err := g.SendMessage(ctx, "hello", model.SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "reply", first.Response)
	_, err = uuid.Parse(first.ConversationID)
	require.NoError(t, err, "new conversations get a UUID")
	_, err = uuid.Parse(first.MessageID)
	require.NoError(t, err, "missing messageId is generated")

	second, err := g.SendMessage(ctx, "and again", model.SendOptions{
		ConversationID:  first.ConversationID,
		ParentMessageID: first.MessageID,
		MessageID:       "m2",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, "m2", second.MessageID)
	assert.NotEqual(t, first.MessageID, second.MessageID)

	// user, model, user
	assert.Equal(t, []int{1, 3}, llm.historyLengths())

	sess := g.sessions.GetOrCreate(first.ConversationID)
	assert.Equal(t, 1, g.sessions.Len())
	assert.Equal(t, 2, sess.Turns)
	assert.Equal(t, first.MessageID, sess.ParentMessageID)
	assert.Equal(t, "m2", sess.LastMessageID)
}

func TestGemini_SeparateConversationsDoNotShareHistory(t *testing.T) {
	llm := &fakeLLM{reply: "reply"}
	g := newInitializedGemini(t, llm)
	ctx := context.Background()

	a, err := g.SendMessage(ctx, "one", model.SendOptions{ConversationID: "conv-a"})
	require.NoError(t, err)
	b, err := g.SendMessage(ctx, "two", model.SendOptions{ConversationID: "conv-b"})
	require.NoError(t, err)

	assert.Equal(t, "conv-a", a.ConversationID)
	assert.Equal(t, "conv-b", b.ConversationID)
	assert.Equal(t, []int{1, 1}, llm.historyLengths())
}

func TestGemini_TurnsOfOneConversationRunOneAtATime(t *testing.T) {
	llm := &fakeLLM{reply: "reply", delay: 30 * time.Millisecond}
	g := newInitializedGemini(t, llm)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.SendMessage(context.Background(), "hi", model.SendOptions{ConversationID: "shared"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, llm.maxInFlight.Load())
	assert.Equal(t, 4, g.sessions.GetOrCreate("shared").Turns)
	// cada turno vê o histórico completo dos anteriores
	assert.Equal(t, []int{1, 3, 5, 7}, llm.historyLengths())
}

func TestCollectText(t *testing.T) {
	parts := []*genai.Part{
		{Text: "Hello"},
		nil,
		{Text: "thinking...", Thought: true},
		{FunctionCall: &genai.FunctionCall{Name: "lookup"}},
		{Text: ", world"},
	}

	assert.Equal(t, "Hello, world", collectText(parts))
	assert.Empty(t, collectText(nil))
}
