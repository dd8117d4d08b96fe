// Package attachment holds the single current report artifact and its
// revocable preview handle.
package attachment

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Attachment is one finished capture result: the payload plus the metadata
// the submission step needs.
type Attachment struct {
	ID          string
	Payload     []byte
	MimeType    string
	DisplayName string
	Preview     *Preview
}

// Registry tracks live preview handles so revocation is observable.
type Registry struct {
	mu   sync.Mutex
	live map[string]struct{}
}

// NewRegistry constructs an empty preview registry.
func NewRegistry() *Registry {
	return &Registry{live: make(map[string]struct{})}
}

// Preview is a revocable local-render reference for one attachment.
type Preview struct {
	registry *Registry
	token    string

	mu      sync.Mutex
	revoked bool
}

// Create issues a new live preview handle.
func (r *Registry) Create() *Preview {
	token := uuid.NewString()
	r.mu.Lock()
	r.live[token] = struct{}{}
	r.mu.Unlock()
	return &Preview{registry: r, token: token}
}

// LiveCount reports how many preview handles have not been revoked.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// URL returns the local reference used to render the preview.
func (p *Preview) URL() string {
	return fmt.Sprintf("preview://%s", p.token)
}

// Revoke releases the handle. Revoking twice is a no-op.
func (p *Preview) Revoke() {
	p.mu.Lock()
	if p.revoked {
		p.mu.Unlock()
		return
	}
	p.revoked = true
	p.mu.Unlock()

	p.registry.mu.Lock()
	delete(p.registry.live, p.token)
	p.registry.mu.Unlock()
}

// Revoked reports whether the handle has been released.
func (p *Preview) Revoked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revoked
}

// Slot is the single current-attachment cell. At most one attachment, and
// therefore at most one live preview handle, exists at a time.
type Slot struct {
	registry *Registry

	mu      sync.Mutex
	current *Attachment
}

// NewSlot constructs an empty slot backed by a preview registry.
func NewSlot(registry *Registry) *Slot {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Slot{registry: registry}
}

// New builds an attachment with a fresh ID and live preview handle.
func (s *Slot) New(payload []byte, mimeType string, displayName string) *Attachment {
	return &Attachment{
		ID:          uuid.NewString(),
		Payload:     payload,
		MimeType:    mimeType,
		DisplayName: displayName,
		Preview:     s.registry.Create(),
	}
}

// Replace installs a new current attachment, revoking the previous preview
// handle before assignment.
func (s *Slot) Replace(next *Attachment) {
	s.mu.Lock()
	previous := s.current
	s.current = next
	s.mu.Unlock()

	if previous != nil && previous.Preview != nil {
		previous.Preview.Revoke()
	}
}

// Remove clears the slot and revokes its preview handle.
func (s *Slot) Remove() {
	s.Replace(nil)
}

// Current returns the attachment currently held, or nil.
func (s *Slot) Current() *Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Registry exposes the backing preview registry.
func (s *Slot) Registry() *Registry {
	return s.registry
}
