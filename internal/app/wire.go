package app

import (
	"procurement/internal/ai"
	"procurement/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresService wires the Postgres-backed core services behind an
// ApplicationService. An empty resetSecretHash disables sequence resets.
func NewPostgresService(pool *pgxpool.Pool, resetSecretHash string, drafter ai.Drafter, audit core.AuditSink) ApplicationService {
	if audit == nil {
		audit = core.NopAuditSink
	}
	sequences := core.NewSequenceAllocator(pool, []byte(resetSecretHash))
	repo := core.NewDocumentRepository(pool, sequences, audit)
	return NewAppService(
		sequences,
		repo,
		core.NewStatusLifecycle(repo, audit),
		core.NewPriceHistoryLedger(pool, audit),
		core.NewPriceHistoryReconciler(repo),
		drafter,
		audit,
	)
}
