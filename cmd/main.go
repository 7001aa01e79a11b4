package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vitormoschetta/chatrelay/internal/chatclient"
	"github.com/vitormoschetta/chatrelay/internal/config"
	"github.com/vitormoschetta/chatrelay/internal/handler"
	"github.com/vitormoschetta/chatrelay/internal/logging"
	"github.com/vitormoschetta/chatrelay/internal/server"
)

var (
	// Version information - will be set during build
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("chatrelay failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:           "chatrelay",
		Short:         "HTTP relay in front of a chat client",
		Version:       Version + " (" + GitCommit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, cmd.Flags().Changed)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	flags.StringVar(&cfg.Hostname, "hostname", "", "instance name (default is the OS hostname)")
	flags.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "env file loaded at startup")
	flags.StringVar(&cfg.EnvExample, "env-example", cfg.EnvExample, "manifest of required env keys")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.Backend, "backend", cfg.Backend, "chat backend: upstream or gemini")
	flags.StringVar(&cfg.UpstreamURL, "upstream-url", "", "base URL of the browser automation sidecar")
	flags.DurationVar(&cfg.UpstreamTimeout, "upstream-timeout", 0, "timeout for upstream calls (0 disables)")
	flags.BoolVar(&cfg.Debug, "debug", false, "debug logging for the chat client")
	flags.BoolVar(&cfg.Minimize, "minimize", cfg.Minimize, "ask the sidecar to minimize its browser window")
	flags.StringVar(&cfg.GeminiModel, "gemini-model", cfg.GeminiModel, "model used by the gemini backend")
	flags.StringVar(&cfg.MCPEndpoint, "mcp-endpoint", "", "MCP endpoint for the gemini backend tools")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, changed config.ChangedFunc) error {
	logging.Setup(cfg.LogLevel, cfg.Debug)

	if err := config.Load(cfg, os.LookupEnv, changed); err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.Debug)

	log.Info().
		Str("version", Version).
		Str("instance", cfg.Hostname).
		Str("backend", cfg.Backend).
		Str("email", cfg.Credentials.Masked()).
		Msg("config loaded")

	// Criar cliente e iniciar a sessão
	client, err := chatclient.New(cfg)
	if err != nil {
		return err
	}
	srv := server.NewServer(cfg, client)
	if err := srv.Init(ctx); err != nil {
		return err
	}

	// Configurar rotas com os handlers
	h := handler.NewHandler(srv)
	srv.SetupRouter(h.HandleReady, h.HandleChat)

	// Iniciar servidor
	return srv.Start(ctx)
}
