package ports

import "github.com/homelist/auth-service/internal/core/domain"

// AuditRecorder accepts authentication events for asynchronous persistence.
// Record must not block the caller.
type AuditRecorder interface {
	Record(event domain.AuthEvent)
}
