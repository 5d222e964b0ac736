package auth

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const pseudoPrefix = "local-"

// Identity is the acting principal threaded into every write. Pseudo
// identities stand in when nobody is signed in.
type Identity struct {
	ID            string `json:"id"`
	Authenticated bool   `json:"authenticated"`
}

func NewPseudoID() string {
	return pseudoPrefix + uuid.NewString()
}

func IsPseudo(id string) bool {
	return strings.HasPrefix(id, pseudoPrefix)
}

// IdentityProvider resolves the identity of one session. The pseudo id is
// generated on first use and reused for the provider's lifetime, including
// across SignIn/SignOut. Records written under it are not re-owned on
// sign-in.
type IdentityProvider struct {
	mu        sync.Mutex
	principal string
	pseudo    string
	mint      func() string
}

// NewIdentityProviderWith uses mint to produce the pseudo id.
func NewIdentityProviderWith(mint func() string) *IdentityProvider {
	return &IdentityProvider{mint: mint}
}

func (p *IdentityProvider) SignIn(id string) {
	p.mu.Lock()
	p.principal = id
	p.mu.Unlock()
}

func (p *IdentityProvider) SignOut() {
	p.mu.Lock()
	p.principal = ""
	p.mu.Unlock()
}

func (p *IdentityProvider) CurrentOrCreate() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.principal != "" {
		return Identity{ID: p.principal, Authenticated: true}
	}
	if p.pseudo == "" {
		p.pseudo = p.mint()
	}
	return Identity{ID: p.pseudo}
}
