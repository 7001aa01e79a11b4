package chatclient

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	adkmodel "google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/mcptoolset"
	"google.golang.org/genai"

	"github.com/vitormoschetta/chatrelay/internal/model"
	"github.com/vitormoschetta/chatrelay/internal/service"
)

const (
	geminiAppName = "chatrelay"
	geminiUserID  = "default-user"
)

// GeminiConfig configura o backend ADK
type GeminiConfig struct {
	APIKey      string
	Model       string
	MCPEndpoint string
	MCPToken    string
}

// Gemini executa as mensagens num agente ADK. Cada conversationId vira uma
// sessão ADK, e turnos da mesma conversa rodam um de cada vez.
type Gemini struct {
	cfg  GeminiConfig
	opts Options
	llm  adkmodel.LLM

	mu             sync.RWMutex
	runner         *runner.Runner
	sessionService session.Service

	sessions *service.SessionManager
}

// GeminiOption altera a construção do backend
type GeminiOption func(g *Gemini)

// WithModel usa o modelo informado no lugar de gemini.NewModel
func WithModel(llm adkmodel.LLM) GeminiOption {
	return func(g *Gemini) {
		g.llm = llm
	}
}

func NewGemini(cfg GeminiConfig, opts Options, options ...GeminiOption) *Gemini {
	g := &Gemini{
		cfg:      cfg,
		opts:     opts,
		sessions: service.NewSessionManager(),
	}
	for _, o := range options {
		o(g)
	}
	return g
}

// InitSession cria o modelo, o toolset MCP opcional, o agente e o runner
func (g *Gemini) InitSession(ctx context.Context) error {
	llmModel := g.llm
	if llmModel == nil {
		m, err := gemini.NewModel(ctx, g.cfg.Model, &genai.ClientConfig{
			APIKey: g.cfg.APIKey,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create model")
		}
		llmModel = m
	}

	var toolsets []tool.Toolset
	if g.cfg.MCPEndpoint != "" {
		if g.cfg.MCPToken == "" {
			log.Warn().Msg("X_MCP_TOKEN is not set - MCP requests may fail with 403")
		}

		header := http.Header{}
		if g.cfg.MCPToken != "" {
			header.Set("X-MCP-Token", g.cfg.MCPToken)
		}
		transport := &mcp.StreamableClientTransport{
			Endpoint: g.cfg.MCPEndpoint,
			HTTPClient: &http.Client{
				Transport: &headerTransport{
					Base:   http.DefaultTransport,
					Header: header,
					Debug:  g.opts.Debug,
				},
				Timeout: 30 * time.Second,
			},
		}

		log.Info().Str("endpoint", g.cfg.MCPEndpoint).Msg("connecting to MCP endpoint")
		mcpToolSet, err := mcptoolset.New(mcptoolset.Config{
			Transport: transport,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create MCP tool set")
		}
		toolsets = append(toolsets, mcpToolSet)
	}

	a, err := llmagent.New(llmagent.Config{
		Name:        "chatrelay_agent",
		Model:       llmModel,
		Description: "Chat agent behind the relay.",
		Instruction: "You are a helpful assistant.",
		Toolsets:    toolsets,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create agent")
	}

	sessionService := session.InMemoryService()
	agentRunner, err := runner.New(runner.Config{
		AppName:        geminiAppName,
		Agent:          a,
		SessionService: sessionService,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create runner")
	}

	g.mu.Lock()
	g.runner = agentRunner
	g.sessionService = sessionService
	g.mu.Unlock()

	log.Info().Str("model", g.cfg.Model).Int("toolsets", len(toolsets)).Msg("gemini session initialized")
	return nil
}

// SendMessage executa um turno na conversa indicada por opts.ConversationID
func (g *Gemini) SendMessage(ctx context.Context, prompt string, opts model.SendOptions) (*model.Result, error) {
	g.mu.RLock()
	agentRunner, sessionService := g.runner, g.sessionService
	g.mu.RUnlock()
	if agentRunner == nil {
		return nil, ErrSessionNotInitialized
	}

	chatSess := g.sessions.GetOrCreate(opts.ConversationID)
	chatSess.Mu.Lock()
	defer chatSess.Mu.Unlock()

	// Sessão ADK criada no primeiro uso da conversa
	if _, err := sessionService.Get(ctx, &session.GetRequest{
		AppName:   geminiAppName,
		UserID:    geminiUserID,
		SessionID: chatSess.ID,
	}); err != nil {
		_, createErr := sessionService.Create(ctx, &session.CreateRequest{
			AppName:   geminiAppName,
			UserID:    geminiUserID,
			SessionID: chatSess.ID,
		})
		if createErr != nil && !strings.Contains(createErr.Error(), "already exists") {
			return nil, errors.Wrap(createErr, "failed to create session")
		}
	}

	userContent := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt},
		},
	}

	var responseText strings.Builder
	for event, err := range agentRunner.Run(ctx, geminiUserID, chatSess.ID, userContent, agent.RunConfig{}) {
		if err != nil {
			return nil, errors.Wrap(err, "failed to process message")
		}
		if event != nil && event.Content != nil {
			responseText.WriteString(collectText(event.Content.Parts))
		}
	}

	messageID := opts.MessageID
	if messageID == "" {
		messageID = uuid.New().String()
	}
	chatSess.Record(opts.ParentMessageID, messageID)

	return &model.Result{
		ConversationID: chatSess.ID,
		Response:       responseText.String(),
		MessageID:      messageID,
	}, nil
}

// collectText concatena as partes de texto, ignorando chamadas de função e afins
func collectText(parts []*genai.Part) string {
	var sb strings.Builder
	for _, part := range parts {
		if part != nil && part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
