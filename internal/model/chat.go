package model

import "strings"

// SendOptions carrega os parâmetros opcionais de uma mensagem, lidos da query string
type SendOptions struct {
	ConversationID  string
	ParentMessageID string
	MessageID       string
}

// Result representa a resposta do cliente de chat
type Result struct {
	ConversationID string `json:"conversationId"`
	Response       string `json:"response"`
	MessageID      string `json:"messageId"`
}

// ChatResponse representa a resposta do endpoint de chat
type ChatResponse struct {
	Instance string `json:"instance"`
	Result
}

// UnknownError substitui mensagens de erro vazias. Um {"error": ""} seria lido
// como sucesso por quem encadeia relays.
const UnknownError = "unknown error"

// ErrorResponse representa uma falha do cliente de chat
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewErrorResponse monta a resposta de erro, nunca com mensagem vazia
func NewErrorResponse(err error) ErrorResponse {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if strings.TrimSpace(msg) == "" {
		msg = UnknownError
	}
	return ErrorResponse{Error: msg}
}

// Fields retorna o resultado em formato de campos para log
func (r Result) Fields() map[string]interface{} {
	return map[string]interface{}{
		"conversationId": r.ConversationID,
		"messageId":      r.MessageID,
		"response":       r.Response,
	}
}
