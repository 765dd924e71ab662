// Package backendtest provides an in-memory backend.Backend for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalfx/sfx-forwarder-app/internal/backend"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// Op names a backend call, in the order they were made.
type Op string

const (
	OpReadConfig   Op = "read_config"
	OpCreateConfig Op = "create_config"
	OpUpdateConfig Op = "update_config"
	OpReadToken    Op = "read_token"
	OpCreateToken  Op = "create_token"
	OpUpdateToken  Op = "update_token"
)

// Fake is a thread-safe in-memory backend. Rows are appended on create, so a
// racing double create is observable as two rows.
type Fake struct {
	mu     sync.Mutex
	rows   []model.IngestConfig
	token  *model.AccessCredential
	nextID int
	calls  []Op

	// Fail makes the named operation return an error.
	Fail map[Op]error
	// FailACL makes CreateAccessToken store the token but report ErrACLNotApplied.
	FailACL bool
	// Hook runs inside every call before it touches state; tests use it to
	// stall or interleave calls.
	Hook func(op Op)
}

var _ backend.Backend = (*Fake)(nil)

// New returns an empty fake.
func New() *Fake {
	return &Fake{Fail: map[Op]error{}}
}

// WithConfig seeds one ingest config row.
func (f *Fake) WithConfig(ingestURL string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows = append(f.rows, model.IngestConfig{IngestURL: ingestURL, Key: fmt.Sprintf("key-%d", f.nextID)})
	return f
}

// WithToken seeds the credential.
func (f *Fake) WithToken(token string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = &model.AccessCredential{Realm: model.TokenRealm, Username: model.TokenUsername, ClearPassword: token}
	return f
}

func (f *Fake) enter(op Op) error {
	if f.Hook != nil {
		f.Hook(op)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.Fail[op]
}

// ReadIngestConfig returns the first row, like `| inputlookup | head 1`.
func (f *Fake) ReadIngestConfig(_ context.Context) (*model.IngestConfig, error) {
	if err := f.enter(OpReadConfig); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rows) == 0 {
		return nil, nil
	}
	row := f.rows[0]
	return &row, nil
}

func (f *Fake) CreateIngestConfig(_ context.Context, ingestURL string) (*model.IngestConfig, error) {
	if err := f.enter(OpCreateConfig); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	row := model.IngestConfig{IngestURL: ingestURL, Key: fmt.Sprintf("key-%d", f.nextID)}
	f.rows = append(f.rows, row)
	return &row, nil
}

func (f *Fake) UpdateIngestConfig(_ context.Context, key, ingestURL string) (*model.IngestConfig, error) {
	if err := f.enter(OpUpdateConfig); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].Key == key {
			f.rows[i].IngestURL = ingestURL
			row := f.rows[i]
			return &row, nil
		}
	}
	return nil, fmt.Errorf("no row with _key %q", key)
}

func (f *Fake) ReadAccessToken(_ context.Context) (*model.AccessCredential, error) {
	if err := f.enter(OpReadToken); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == nil {
		return nil, nil
	}
	cred := *f.token
	return &cred, nil
}

func (f *Fake) CreateAccessToken(_ context.Context, token string) error {
	if err := f.enter(OpCreateToken); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token != nil {
		return fmt.Errorf("credential %s:%s: already exists", model.TokenRealm, model.TokenUsername)
	}
	f.token = &model.AccessCredential{Realm: model.TokenRealm, Username: model.TokenUsername, ClearPassword: token}
	if f.FailACL {
		return fmt.Errorf("set acl: %w", backend.ErrACLNotApplied)
	}
	return nil
}

func (f *Fake) UpdateAccessToken(_ context.Context, token string) error {
	if err := f.enter(OpUpdateToken); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == nil {
		return fmt.Errorf("credential %s:%s: not found", model.TokenRealm, model.TokenUsername)
	}
	f.token.ClearPassword = token
	return nil
}

// Calls returns the operations made so far.
func (f *Fake) Calls() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Op(nil), f.calls...)
}

// Count returns how many times op was called.
func (f *Fake) Count(op Op) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// Rows returns a copy of the stored config rows.
func (f *Fake) Rows() []model.IngestConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.IngestConfig(nil), f.rows...)
}

// Token returns the stored token, or "" when absent.
func (f *Fake) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == nil {
		return ""
	}
	return f.token.ClearPassword
}
