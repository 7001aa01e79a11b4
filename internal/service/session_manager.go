package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChatSession representa uma conversa mantida em memória
type ChatSession struct {
	ID              string
	CreatedAt       time.Time
	LastMessageID   string
	ParentMessageID string
	Turns           int
	// Mu serializa os turnos de uma mesma conversa
	Mu sync.Mutex
}

// Record registra um turno concluído. Deve ser chamado com Mu travado.
func (s *ChatSession) Record(parentMessageID, messageID string) {
	s.ParentMessageID = parentMessageID
	s.LastMessageID = messageID
	s.Turns++
}

// SessionManager gerencia as conversas do processo
type SessionManager struct {
	sessions map[string]*ChatSession
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*ChatSession),
	}
}

// GetOrCreate obtém uma conversa existente ou cria uma nova.
// Um id vazio inicia uma conversa com id gerado.
func (sm *SessionManager) GetOrCreate(sessionID string) *ChatSession {
	if sessionID != "" {
		sm.mu.RLock()
		chatSession, exists := sm.sessions[sessionID]
		sm.mu.RUnlock()
		if exists {
			return chatSession
		}
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sessionID == "" {
		sessionID = generateSessionID()
	}

	if chatSession, exists := sm.sessions[sessionID]; exists {
		return chatSession
	}

	chatSession := &ChatSession{
		ID:        sessionID,
		CreatedAt: time.Now(),
	}
	sm.sessions[sessionID] = chatSession
	return chatSession
}

// Len retorna o número de conversas conhecidas
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func generateSessionID() string {
	return uuid.New().String()
}
