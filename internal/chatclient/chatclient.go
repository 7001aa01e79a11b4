// Package chatclient define o contrato com o cliente de chat externo e as
// implementações disponíveis: upstream (sidecar HTTP de automação de browser ou
// outra instância do relay) e gemini (ADK runner).
package chatclient

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vitormoschetta/chatrelay/internal/config"
	"github.com/vitormoschetta/chatrelay/internal/model"
)

// ErrSessionNotInitialized é retornado por SendMessage antes de InitSession
var ErrSessionNotInitialized = errors.New("chat session not initialized")

// Client é o colaborador externo: uma sessão inicializada uma vez e mensagens
// enviadas de forma concorrente por todas as requisições
type Client interface {
	InitSession(ctx context.Context) error
	SendMessage(ctx context.Context, prompt string, opts model.SendOptions) (*model.Result, error)
}

// Options são os parâmetros de construção do cliente
type Options struct {
	Email    string
	Password string
	Debug    bool
	Minimize bool
}

// New constrói o cliente do backend configurado. A sessão ainda não é iniciada.
func New(cfg *config.Config) (Client, error) {
	opts := Options{
		Email:    cfg.Credentials.Email,
		Password: cfg.Credentials.Password,
		Debug:    cfg.Debug,
		Minimize: cfg.Minimize,
	}
	switch cfg.Backend {
	case config.BackendUpstream:
		return NewUpstream(cfg.UpstreamURL, opts, cfg.UpstreamTimeout)
	case config.BackendGemini:
		return NewGemini(GeminiConfig{
			APIKey:      cfg.GoogleAPIKey,
			Model:       cfg.GeminiModel,
			MCPEndpoint: cfg.MCPEndpoint,
			MCPToken:    cfg.MCPToken,
		}, opts), nil
	default:
		return nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}
}
