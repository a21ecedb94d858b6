package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LuisFaxas/faxas-property-sub000/internal/audit"
)

var _ audit.Sink = (*AuditSink)(nil)

// AuditSink appends records to the audit_records table. The table carries no
// update or delete path in the application; rows only accumulate.
type AuditSink struct {
	store *Store
}

func (s *Store) AuditSink() *AuditSink {
	return &AuditSink{store: s}
}

func (s *AuditSink) Write(ctx context.Context, rec audit.Record) error {
	var detail []byte
	if len(rec.Detail) > 0 {
		b, err := json.Marshal(rec.Detail)
		if err != nil {
			return fmt.Errorf("marshal detail: %w", err)
		}
		detail = b
	}
	_, err := s.store.db.ExecContext(ctx, `
		insert into audit_records (id, at, principal_id, project_id, module, intent, action, allowed, reason, detail)
		values ($1, $2, $3, nullif($4,''), nullif($5,''), nullif($6,''), nullif($7,''), $8, nullif($9,''), $10)
	`, rec.ID, rec.At, rec.PrincipalID, rec.ProjectID, rec.Module, rec.Intent, rec.Action, rec.Allowed, rec.Reason, detail)
	return err
}
