package memory

import (
	"sync"

	"trivia-service/internal/app"
)

// LobbyStore is the in-memory implementation of app.LobbyStore. The map
// lock only guards registry operations; gameplay for each lobby is
// serialized inside its own Session, so unrelated games never contend here
// beyond a lookup.
type LobbyStore struct {
	mu      sync.RWMutex
	lobbies map[string]*app.Session
}

func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		lobbies: make(map[string]*app.Session),
	}
}

func (s *LobbyStore) Insert(code string, sess *app.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[code]; exists {
		return false
	}
	s.lobbies[code] = sess
	return true
}

func (s *LobbyStore) Get(code string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.lobbies[code]
	return sess, ok
}

func (s *LobbyStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, code)
}

func (s *LobbyStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lobbies)
}

func (s *LobbyStore) Range(fn func(code string, sess *app.Session) bool) {
	s.mu.RLock()
	snapshot := make(map[string]*app.Session, len(s.lobbies))
	for code, sess := range s.lobbies {
		snapshot[code] = sess
	}
	s.mu.RUnlock()

	for code, sess := range snapshot {
		if !fn(code, sess) {
			return
		}
	}
}
