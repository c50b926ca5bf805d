// Package registry tracks the usernames of active notepad sessions.
//
// A username may be held by at most one session at a time. The registry is
// an ordinary value that the server creates once and hands to every
// connection handler. It holds no I/O and its lock is never held across a
// socket or storage call.
package registry

import (
	"sort"
	"sync"
	"time"
)

// SessionInfo describes the session currently holding a username.
type SessionInfo struct {
	Username   string    `json:"username"`
	ClientAddr string    `json:"client_addr,omitempty"`
	Since      time.Time `json:"since"`
}

// Registry is the set of active usernames.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]SessionInfo
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]SessionInfo)}
}

// TryRegister claims username. It returns false if the name is already
// held. Check and insert happen in one critical section, so of any number
// of concurrent callers for the same name exactly one succeeds.
func (r *Registry) TryRegister(username string) bool {
	return r.TryRegisterSession(SessionInfo{Username: username})
}

// TryRegisterSession is TryRegister with connection details attached.
// A zero Since is set to the current time.
func (r *Registry) TryRegisterSession(info SessionInfo) bool {
	if info.Since.IsZero() {
		info.Since = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.sessions[info.Username]; held {
		return false
	}
	r.sessions[info.Username] = info
	return true
}

// Release frees username. It reports whether the name was held, so a
// caller releasing twice sees true only once.
func (r *Registry) Release(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.sessions[username]; !held {
		return false
	}
	delete(r.sessions, username)
	return true
}

// IsActive reports whether username is currently held.
func (r *Registry) IsActive(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.sessions[username]
	return held
}

// Count returns the number of held usernames.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns a sorted snapshot of held usernames.
func (r *Registry) List() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Sessions returns a snapshot of all sessions ordered by username.
func (r *Registry) Sessions() []SessionInfo {
	r.mu.Lock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, info := range r.sessions {
		out = append(out, info)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
