// Package session tracks per-connection state the command dispatcher needs
// beyond what a single Engine call takes as arguments: which identity is
// logged in and which directory is "current" for relative paths.
package session

import (
	"sync"

	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/vfs"
)

// Session holds one connected client's login identity and cwd. New returns
// an anonymous, unauthenticated session rooted at "/".
type Session struct {
	mu         sync.RWMutex
	identity   vfs.Identity
	username   string
	authed     bool
	cwd        uint16
	cwdDisplay string
}

func New() *Session {
	return &Session{cwd: image.RootInodeID, cwdDisplay: "/"}
}

// Login records a successful authentication's identity.
func (s *Session) Login(username string, id vfs.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.identity = id
	s.authed = true
}

func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = ""
	s.identity = vfs.Identity{}
	s.authed = false
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authed
}

func (s *Session) Identity() vfs.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) Cwd() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwd
}

func (s *Session) CwdDisplay() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwdDisplay
}

// SetCwd updates the session's current directory, along with the display
// path printed in the shell's prompt.
func (s *Session) SetCwd(id uint16, display string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cwd = id
	s.cwdDisplay = display
}

// Registry tracks every live session a daemon process is serving, keyed by
// connection id; Count reports how many are open.
type Registry struct {
	mu       sync.Mutex
	sessions map[uint64]*Session
	nextID   uint64
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint64]*Session)}
}

func (r *Registry) Open() (uint64, *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	s := New()
	r.sessions[id] = s
	return id, s
}

func (r *Registry) Close(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
