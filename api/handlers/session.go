package handlers

import (
	"sync"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/local/quizforge/api/models"
)

const sessionIDKey = "sid"

// SessionRegistry maps cookie session IDs to in-memory session state.
// Sessions are isolated by construction; the lock only guards the map.
type SessionRegistry struct {
	mu     sync.Mutex
	states map[string]*models.SessionState
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{states: map[string]*models.SessionState{}}
}

// Get returns the state for id, creating a fresh one on first sight.
func (r *SessionRegistry) Get(id string) *models.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[id]
	if !ok {
		st = models.NewSessionState()
		r.states[id] = st
	}
	return st
}

// Reset discards any state for id and returns a fresh one.
func (r *SessionRegistry) Reset(id string) *models.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := models.NewSessionState()
	r.states[id] = st
	return st
}

// session resolves the calling browser's session ID from the cookie store,
// minting one on the first request, and returns its state.
func (h *Handler) session(c *gin.Context) (string, *models.SessionState) {
	sess := sessions.Default(c)
	id, _ := sess.Get(sessionIDKey).(string)
	if id == "" {
		id = uuid.New().String()
		sess.Set(sessionIDKey, id)
		_ = sess.Save()
	}
	return id, h.sessions.Get(id)
}
