// Package services applies request semantics on top of the repositories:
// input validation, optional ownership checks and ledger event publishing.
package services

import (
	"context"
	"log/slog"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
)

// Repository is the storage contract of one resource table.
type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (T, error)
	Create(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, id int64, rec T) (T, error)
	Delete(ctx context.Context, id int64) error
	OwnerOf(ctx context.Context, id int64) (int64, error)
}

// Input is a decoded request body that validates itself into a record.
type Input[T any] interface {
	ForCreate() (T, error)
	ForUpdate() (T, error)
}

// Publisher announces successful writes.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// Options configures a resource Service.
type Options struct {
	// Owned marks resources whose rows carry a usuario_id.
	Owned bool
	// EnforceOwnership restricts writes on owned resources to the owner.
	EnforceOwnership bool
	Publisher        Publisher
}

// Service is the uniform CRUD contract for one resource kind.
type Service[T core.Record] struct {
	name string
	repo Repository[T]
	opts Options
}

// NewService builds the service for the resource exposed under name,
// e.g. "gastos".
func NewService[T core.Record](name string, repo Repository[T], opts Options) *Service[T] {
	return &Service[T]{name: name, repo: repo, opts: opts}
}

func (s *Service[T]) Name() string {
	return s.name
}

// List returns every record. Listing is not scoped to the caller.
func (s *Service[T]) List(ctx context.Context) ([]T, error) {
	return s.repo.List(ctx)
}

func (s *Service[T]) Get(ctx context.Context, id int64) (T, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service[T]) Create(ctx context.Context, claim *core.Claim, in Input[T]) (T, error) {
	var zero T
	rec, err := in.ForCreate()
	if err != nil {
		return zero, err
	}
	if err := s.authorizeRecord(claim, rec); err != nil {
		return zero, err
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return zero, err
	}
	s.publish(ctx, amqp.OperationCreated, created.RecordID(), claim)
	return created, nil
}

// Update replaces every field of the record with the given id.
func (s *Service[T]) Update(ctx context.Context, claim *core.Claim, id int64, in Input[T]) (T, error) {
	var zero T
	rec, err := in.ForUpdate()
	if err != nil {
		return zero, err
	}
	if err := s.authorizeRow(ctx, claim, id); err != nil {
		return zero, err
	}
	if err := s.authorizeRecord(claim, rec); err != nil {
		return zero, err
	}

	updated, err := s.repo.Update(ctx, id, rec)
	if err != nil {
		return zero, err
	}
	s.publish(ctx, amqp.OperationUpdated, id, claim)
	return updated, nil
}

func (s *Service[T]) Delete(ctx context.Context, claim *core.Claim, id int64) error {
	if err := s.authorizeRow(ctx, claim, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.OperationDeleted, id, claim)
	return nil
}

func (s *Service[T]) enforced() bool {
	return s.opts.Owned && s.opts.EnforceOwnership
}

// authorizeRow checks the caller owns the stored row.
func (s *Service[T]) authorizeRow(ctx context.Context, claim *core.Claim, id int64) error {
	if !s.enforced() {
		return nil
	}
	if claim == nil {
		return core.Unauthenticated("authentication required")
	}
	owner, err := s.repo.OwnerOf(ctx, id)
	if err != nil {
		return err
	}
	if owner != claim.ID {
		slog.WarnContext(ctx, "Ownership check failed",
			"resource", s.name,
			"id", id,
			"user_id", claim.ID)
		return core.Forbidden("access denied")
	}
	return nil
}

// authorizeRecord checks the caller is not writing a row on behalf of
// someone else.
func (s *Service[T]) authorizeRecord(claim *core.Claim, rec T) error {
	if !s.enforced() {
		return nil
	}
	if claim == nil {
		return core.Unauthenticated("authentication required")
	}
	if owned, ok := any(rec).(core.Owned); ok && owned.OwnerID() != claim.ID {
		return core.Forbidden("usuario_id must match the authenticated user")
	}
	return nil
}

// publish never fails the request: the write has already happened.
func (s *Service[T]) publish(ctx context.Context, op amqp.Operation, id int64, claim *core.Claim) {
	if s.opts.Publisher == nil {
		return
	}
	var actor *int64
	if claim != nil {
		actor = &claim.ID
	}
	if err := s.opts.Publisher.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(s.name, op, id, actor)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"resource", s.name,
			"operation", op,
			"id", id,
			"error", err)
	}
}
