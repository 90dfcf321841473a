package memory

import (
	"context"
	"time"

	"github.com/updownlabs/updownd/internal/domain"
)

// AuditStore implements domain.AuditStore on a Store.
type AuditStore struct {
	st *Store
}

// NewAuditStore creates an AuditStore backed by the given Store.
func NewAuditStore(st *Store) *AuditStore {
	return &AuditStore{st: st}
}

// Log appends an audit entry.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	s.st.auditSeq++
	s.st.audit = append(s.st.audit, domain.AuditEntry{
		ID:        s.st.auditSeq,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns audit entries, newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	entries := make([]domain.AuditEntry, 0, len(s.st.audit))
	for i := len(s.st.audit) - 1; i >= 0; i-- {
		entries = append(entries, s.st.audit[i])
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
