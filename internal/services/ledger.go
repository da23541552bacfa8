package services

import (
	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// Ledger groups the services of the six resource kinds.
type Ledger struct {
	Categories     *Service[core.Named]
	PaymentMethods *Service[core.Named]
	IncomeTypes    *Service[core.Named]
	Expenses       *Service[core.Expense]
	Incomes        *Service[core.Income]
	SavingsGoals   *Service[core.SavingsGoal]
}

// NewLedger wires every resource service to its repository in store.
func NewLedger(store *storage.Store, enforceOwnership bool, publisher Publisher) *Ledger {
	shared := Options{Publisher: publisher}
	owned := Options{Owned: true, EnforceOwnership: enforceOwnership, Publisher: publisher}

	return &Ledger{
		Categories:     NewService("categorias", store.Categories, shared),
		PaymentMethods: NewService("metodospago", store.PaymentMethods, shared),
		IncomeTypes:    NewService("tiposingreso", store.IncomeTypes, shared),
		Expenses:       NewService("gastos", store.Expenses, owned),
		Incomes:        NewService("ingresos", store.Incomes, owned),
		SavingsGoals:   NewService("ahorros", store.SavingsGoals, owned),
	}
}
