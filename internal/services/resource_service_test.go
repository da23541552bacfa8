package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	store     *storage.Store
	publisher *recordingPublisher
	ledger    *Ledger
	alice     core.User
	bob       core.User
	category  int64
	method    int64
}

func newFixture(t *testing.T, enforce bool) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, storage.Options{
		Driver:  storage.DriverSQLite,
		DSN:     storage.SQLiteDSN(filepath.Join(t.TempDir(), "finanzas.db")),
		Migrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store, publisher: &recordingPublisher{}}
	f.ledger = NewLedger(store, enforce, f.publisher)

	f.alice, err = store.Users.Create(ctx, "alice01", "hash")
	require.NoError(t, err)
	f.bob, err = store.Users.Create(ctx, "bobby01", "hash")
	require.NoError(t, err)

	cat, err := store.Categories.Create(ctx, core.Named{Nombre: "Comida"})
	require.NoError(t, err)
	f.category = cat.ID
	method, err := store.PaymentMethods.Create(ctx, core.Named{Nombre: "Tarjeta"})
	require.NoError(t, err)
	f.method = method.ID
	return f
}

func (f *fixture) expenseInput(owner int64, amount string) core.ExpenseInput {
	monto := decimal.RequireFromString(amount)
	fecha := core.NewDate(2024, 3, 1)
	return core.ExpenseInput{
		UsuarioID:    &owner,
		CategoriaID:  &f.category,
		MetodoPagoID: &f.method,
		Monto:        &monto,
		Fecha:        &fecha,
	}
}

func claimFor(u core.User) *core.Claim {
	return &core.Claim{ID: u.ID, Username: u.Nombre}
}

func TestService_CreateValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.ledger.Expenses.Create(ctx, nil, core.ExpenseInput{})
	assert.ErrorIs(t, err, core.ErrValidation)

	list, err := f.ledger.Expenses.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.publisher.events)
}

func TestService_PublishesLedgerEvents(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	claim := claimFor(f.alice)

	created, err := f.ledger.Expenses.Create(ctx, claim, f.expenseInput(f.alice.ID, "10"))
	require.NoError(t, err)
	_, err = f.ledger.Expenses.Update(ctx, nil, created.ID, f.expenseInput(f.alice.ID, "11"))
	require.NoError(t, err)
	require.NoError(t, f.ledger.Expenses.Delete(ctx, claim, created.ID))

	require.Len(t, f.publisher.events, 3)
	assert.Equal(t, "gastos.created", f.publisher.events[0].RoutingKey())
	assert.Equal(t, created.ID, f.publisher.events[0].RecordID)
	require.NotNil(t, f.publisher.events[0].ActorID)
	assert.Equal(t, f.alice.ID, *f.publisher.events[0].ActorID)
	assert.Nil(t, f.publisher.events[1].ActorID, "anonymous update")
	assert.Equal(t, amqp.OperationDeleted, f.publisher.events[2].Operation)
}

func TestService_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t, false)
	f.publisher.err = errors.New("broker down")
	ctx := context.Background()

	name := "Transporte"
	created, err := f.ledger.Categories.Create(ctx, nil, core.NamedInput{Nombre: &name})
	require.NoError(t, err)
	assert.Equal(t, "Transporte", created.Nombre)
}

func TestService_NotFound(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.ledger.Expenses.Update(ctx, nil, 999, f.expenseInput(f.alice.ID, "1"))
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, f.ledger.Incomes.Delete(ctx, nil, 999), core.ErrNotFound)
	assert.Empty(t, f.publisher.events)
}

func TestService_OwnershipNotEnforcedByDefault(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	created, err := f.ledger.Expenses.Create(ctx, nil, f.expenseInput(f.alice.ID, "10"))
	require.NoError(t, err)

	_, err = f.ledger.Expenses.Update(ctx, claimFor(f.bob), created.ID, f.expenseInput(f.alice.ID, "20"))
	assert.NoError(t, err)
	assert.NoError(t, f.ledger.Expenses.Delete(ctx, nil, created.ID))
}

func TestService_OwnershipEnforced(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	alice, bob := claimFor(f.alice), claimFor(f.bob)

	_, err := f.ledger.Expenses.Create(ctx, nil, f.expenseInput(f.alice.ID, "10"))
	assert.ErrorIs(t, err, core.ErrAuthentication)

	_, err = f.ledger.Expenses.Create(ctx, bob, f.expenseInput(f.alice.ID, "10"))
	assert.ErrorIs(t, err, core.ErrForbidden, "cannot create rows for someone else")

	created, err := f.ledger.Expenses.Create(ctx, alice, f.expenseInput(f.alice.ID, "10"))
	require.NoError(t, err)

	_, err = f.ledger.Expenses.Update(ctx, bob, created.ID, f.expenseInput(f.bob.ID, "20"))
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = f.ledger.Expenses.Update(ctx, alice, created.ID, f.expenseInput(f.bob.ID, "20"))
	assert.ErrorIs(t, err, core.ErrForbidden, "cannot hand a row to someone else")

	assert.ErrorIs(t, f.ledger.Expenses.Delete(ctx, bob, created.ID), core.ErrForbidden)
	assert.ErrorIs(t, f.ledger.Expenses.Delete(ctx, alice, 999), core.ErrNotFound)

	updated, err := f.ledger.Expenses.Update(ctx, alice, created.ID, f.expenseInput(f.alice.ID, "30"))
	require.NoError(t, err)
	assert.True(t, updated.Monto.Equal(decimal.NewFromInt(30)))
	assert.NoError(t, f.ledger.Expenses.Delete(ctx, alice, created.ID))

	name := "Ocio"
	_, err = f.ledger.Categories.Create(ctx, nil, core.NamedInput{Nombre: &name})
	assert.NoError(t, err, "shared reference data is never owner checked")
}

func TestService_ConcurrentCreates(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	const n = 8
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		amount := fmt.Sprintf("%d.25", i+1)
		g.Go(func() error {
			_, err := f.ledger.Expenses.Create(gctx, nil, f.expenseInput(f.alice.ID, amount))
			return err
		})
	}
	require.NoError(t, g.Wait())

	list, err := f.ledger.Expenses.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, n)

	seen := make(map[string]bool, n)
	for _, e := range list {
		seen[e.Monto.String()] = true
	}
	assert.Len(t, seen, n, "every distinct payload is stored")
}

func TestService_SavingsGoalRules(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	target := decimal.NewFromInt(0)
	_, err := f.ledger.SavingsGoals.Create(ctx, nil, core.SavingsGoalInput{UsuarioID: &f.alice.ID, MontoObjetivo: &target})
	assert.ErrorIs(t, err, core.ErrValidation)

	target = decimal.NewFromInt(500)
	negative := decimal.NewFromInt(-1)
	_, err = f.ledger.SavingsGoals.Create(ctx, nil, core.SavingsGoalInput{UsuarioID: &f.alice.ID, MontoObjetivo: &target, MontoAhorrado: &negative})
	assert.ErrorIs(t, err, core.ErrValidation)

	goal, err := f.ledger.SavingsGoals.Create(ctx, nil, core.SavingsGoalInput{UsuarioID: &f.alice.ID, MontoObjetivo: &target})
	require.NoError(t, err)
	assert.True(t, goal.MontoAhorrado.IsZero())
	assert.False(t, goal.FechaInicio.IsZero())
}
