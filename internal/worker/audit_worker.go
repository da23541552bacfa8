package worker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	applog "finanzas/internal/log"
	"finanzas/internal/services"
)

// RecordLookup loads the current state of one record of a resource.
type RecordLookup func(ctx context.Context, id int64) (any, error)

// AuditWorker logs the ledger event stream together with the current
// state of each changed record.
type AuditWorker struct {
	logger  *applog.Logger
	lookups map[string]RecordLookup

	mu     sync.Mutex
	counts map[string]int64
}

func NewAuditWorker(logger *applog.Logger, lookups map[string]RecordLookup) *AuditWorker {
	return &AuditWorker{
		logger:  logger.WithComponent(applog.ComponentAudit),
		lookups: lookups,
		counts:  make(map[string]int64),
	}
}

// LookupsFromLedger maps every resource name to its service's Get.
func LookupsFromLedger(l *services.Ledger) map[string]RecordLookup {
	lookups := make(map[string]RecordLookup)
	register(lookups, l.Categories)
	register(lookups, l.PaymentMethods)
	register(lookups, l.IncomeTypes)
	register(lookups, l.Expenses)
	register(lookups, l.Incomes)
	register(lookups, l.SavingsGoals)
	return lookups
}

func register[T core.Record](lookups map[string]RecordLookup, svc *services.Service[T]) {
	lookups[svc.Name()] = func(ctx context.Context, id int64) (any, error) {
		return svc.Get(ctx, id)
	}
}

// HandleLedgerEvent processes a single ledger event from AMQP. Malformed
// events are logged and acknowledged. Store failures are returned so the
// delivery is retried.
func (w *AuditWorker) HandleLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	fields := applog.NewFields().
		WithRecord(event.Resource, event.RecordID).
		WithOperation(string(event.Operation)).
		WithUser(event.ActorID)

	lookup, ok := w.lookups[event.Resource]
	if !ok || event.RecordID <= 0 {
		w.logger.WarnContext(ctx, "Discarding unknown ledger event", fields.ToSlice()...)
		return nil
	}

	switch event.Operation {
	case amqp.OperationCreated, amqp.OperationUpdated:
		record, err := lookup(ctx, event.RecordID)
		if errors.Is(err, core.ErrNotFound) {
			w.logger.InfoContext(ctx, "Ledger change, record since removed", fields.ToSlice()...)
			break
		}
		if err != nil {
			return fmt.Errorf("load %s %d: %w", event.Resource, event.RecordID, err)
		}
		w.logger.InfoContext(ctx, "Ledger change", append(fields.ToSlice(), "record", record)...)
	case amqp.OperationDeleted:
		w.logger.InfoContext(ctx, "Ledger change", fields.ToSlice()...)
	default:
		w.logger.WarnContext(ctx, "Discarding unknown ledger event", fields.ToSlice()...)
		return nil
	}

	w.mu.Lock()
	w.counts[event.RoutingKey()]++
	w.mu.Unlock()
	return nil
}

// Counts returns how many events were audited per routing key.
func (w *AuditWorker) Counts() map[string]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return maps.Clone(w.counts)
}

// LogSummary writes the per routing key totals.
func (w *AuditWorker) LogSummary(ctx context.Context) {
	counts := w.Counts()
	var total int64
	args := make([]any, 0, 2*len(counts)+2)
	for key, n := range counts {
		args = append(args, key, n)
		total += n
	}
	args = append(args, "total", total)
	w.logger.InfoContext(ctx, "Audit summary", args...)
}
