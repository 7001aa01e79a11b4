package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitormoschetta/chatrelay/internal/model"
	"github.com/vitormoschetta/chatrelay/internal/server"
)

// Handler contém as dependências necessárias para os handlers HTTP
type Handler struct {
	server *server.Server
}

// NewHandler cria uma nova instância do Handler
func NewHandler(srv *server.Server) *Handler {
	return &Handler{
		server: srv,
	}
}

// HandleReady responde "ok, <hostname>" sem efeitos colaterais
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok, " + h.server.Hostname)); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// HandleChat repassa a query ao cliente de chat e devolve o resultado ou o erro.
// Falhas do cliente respondem com status 200 e corpo {"error": ...}.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	query := r.URL.Query()
	prompt := query.Get("q")
	opts := model.SendOptions{
		ConversationID:  query.Get("conversationId"),
		ParentMessageID: query.Get("parentMessageId"),
		MessageID:       query.Get("messageId"),
	}

	logger := log.With().Str("instance", h.server.Hostname).Logger()
	logger.Debug().
		Str("q", prompt).
		Str("conversationId", opts.ConversationID).
		Str("parentMessageId", opts.ParentMessageID).
		Str("messageId", opts.MessageID).
		Msg("send message")

	w.Header().Set("instance", h.server.Hostname)

	result, err := h.server.Client.SendMessage(r.Context(), prompt, opts)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error().
			Err(err).
			Str("conversationId", opts.ConversationID).
			Str("parentMessageId", opts.ParentMessageID).
			Int64("elapsed_ms", elapsed.Milliseconds()).
			Msg("send message failed")
		writeJSON(w, model.NewErrorResponse(err))
		return
	}
	if result == nil {
		result = &model.Result{}
	}

	w.Header().Set("conversationId", result.ConversationID)
	logger.Info().
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Fields(result.Fields()).
		Msg("send message done")

	writeJSON(w, model.ChatResponse{
		Instance: h.server.Hostname,
		Result:   *result,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
