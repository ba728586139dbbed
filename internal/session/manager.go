package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smsbridge-backend/internal/phone"
)

// EventsFactory builds the presentation-side event sink for a session,
// typically a websocket hub adapter keyed by the session ID.
type EventsFactory func(sessionID string) Events

// Manager tracks the live UI sessions, one per open page.
type Manager struct {
	log         zerolog.Logger
	gateway     Gateway
	events      EventsFactory
	sched       Scheduler
	plan        phone.Plan
	uploadGuard time.Duration
	importGuard time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(log zerolog.Logger, gateway Gateway, events EventsFactory, sched Scheduler, plan phone.Plan, uploadGuard, importGuard time.Duration) *Manager {
	return &Manager{
		log:         log,
		gateway:     gateway,
		events:      events,
		sched:       sched,
		plan:        plan,
		uploadGuard: uploadGuard,
		importGuard: importGuard,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a fresh session with empty state.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	s := New(id, Options{
		Logger:      m.log,
		Gateway:     m.gateway,
		Events:      m.events(id),
		Scheduler:   m.sched,
		Plan:        m.plan,
		UploadGuard: m.uploadGuard,
		ImportGuard: m.importGuard,
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.log.Info().Str("session_id", id).Msg("session created")
	return s
}

func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove drops a session; its state is never persisted.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
