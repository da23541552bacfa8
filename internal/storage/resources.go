package storage

import (
	"finanzas/internal/core"
)

// Resource descriptors for the six CRUD tables. Column order here is the
// order of Scan destinations and Values arguments.
var (
	Categories     = namedResource("category", "categorias")
	PaymentMethods = namedResource("payment method", "metodospago")
	IncomeTypes    = namedResource("income type", "tiposingreso")

	Expenses = Resource[core.Expense]{
		Label: "expense",
		Table: "gastos",
		Columns: []Column{
			{Name: "usuario_id"},
			{Name: "categoria_id"},
			{Name: "metodopago_id"},
			{Name: "monto"},
			{Name: "descripcion"},
			{Name: "fecha"},
		},
		OrderBy: "fecha DESC, id DESC",
		Owner:   "usuario_id",
		Scan: func(s Scanner) (core.Expense, error) {
			var e core.Expense
			err := s.Scan(&e.ID, &e.UsuarioID, &e.CategoriaID, &e.MetodoPagoID, &e.Monto, &e.Descripcion, &e.Fecha)
			return e, err
		},
		Values: func(e core.Expense) []any {
			return []any{e.UsuarioID, e.CategoriaID, e.MetodoPagoID, e.Monto, e.Descripcion, e.Fecha}
		},
	}

	Incomes = Resource[core.Income]{
		Label: "income",
		Table: "ingresos",
		Columns: []Column{
			{Name: "usuario_id"},
			{Name: "tipoingreso_id"},
			{Name: "monto"},
			{Name: "fecha"},
		},
		OrderBy: "fecha DESC, id DESC",
		Owner:   "usuario_id",
		Scan: func(s Scanner) (core.Income, error) {
			var i core.Income
			err := s.Scan(&i.ID, &i.UsuarioID, &i.TipoIngresoID, &i.Monto, &i.Fecha)
			return i, err
		},
		Values: func(i core.Income) []any {
			return []any{i.UsuarioID, i.TipoIngresoID, i.Monto, i.Fecha}
		},
	}

	SavingsGoals = Resource[core.SavingsGoal]{
		Label: "savings goal",
		Table: "ahorros",
		Columns: []Column{
			{Name: "usuario_id"},
			{Name: "monto_objetivo"},
			{Name: "monto_ahorrado"},
			// A zero Date is written as NULL.
			{Name: "fecha_inicio", Default: "CURRENT_DATE"},
		},
		OrderBy: "fecha_inicio DESC, id DESC",
		Owner:   "usuario_id",
		Scan: func(s Scanner) (core.SavingsGoal, error) {
			var g core.SavingsGoal
			err := s.Scan(&g.ID, &g.UsuarioID, &g.MontoObjetivo, &g.MontoAhorrado, &g.FechaInicio)
			return g, err
		},
		Values: func(g core.SavingsGoal) []any {
			return []any{g.UsuarioID, g.MontoObjetivo, g.MontoAhorrado, g.FechaInicio}
		},
	}
)

func namedResource(label, table string) Resource[core.Named] {
	return Resource[core.Named]{
		Label:   label,
		Table:   table,
		Columns: []Column{{Name: "nombre"}},
		OrderBy: "nombre",
		Scan: func(s Scanner) (core.Named, error) {
			var n core.Named
			err := s.Scan(&n.ID, &n.Nombre)
			return n, err
		},
		Values: func(n core.Named) []any {
			return []any{n.Nombre}
		},
	}
}
