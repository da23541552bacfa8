package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MinUsernameLength and MinPasswordLength bound registration and login input.
	MinUsernameLength = 5
	MinPasswordLength = 5
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
	maxNameLength     = 100
)

type (
	// User is a registered identity. The credential secret is never part of it.
	User struct {
		ID       int64     `json:"id"`
		Nombre   string    `json:"nombre"`
		Email    *string   `json:"email,omitempty"`
		CreadoEn time.Time `json:"creado_en"`
	}

	// Credential is a user row including its stored secret (a password hash).
	Credential struct {
		User
		Secret string
	}

	// Claim is the identity decoded from a verified session token.
	Claim struct {
		ID        int64     `json:"id"`
		Username  string    `json:"username"`
		TokenID   string    `json:"-"`
		ExpiresAt time.Time `json:"-"`
	}

	// Named is the shape shared by categories, payment methods and income types.
	Named struct {
		ID     int64  `json:"id"`
		Nombre string `json:"nombre"`
	}

	Expense struct {
		ID           int64           `json:"id"`
		UsuarioID    int64           `json:"usuario_id"`
		CategoriaID  int64           `json:"categoria_id"`
		MetodoPagoID int64           `json:"metodopago_id"`
		Monto        decimal.Decimal `json:"monto"`
		Descripcion  *string         `json:"descripcion"`
		Fecha        Date            `json:"fecha"`
	}

	Income struct {
		ID            int64           `json:"id"`
		UsuarioID     int64           `json:"usuario_id"`
		TipoIngresoID int64           `json:"tipoingreso_id"`
		Monto         decimal.Decimal `json:"monto"`
		Fecha         Date            `json:"fecha"`
	}

	SavingsGoal struct {
		ID            int64           `json:"id"`
		UsuarioID     int64           `json:"usuario_id"`
		MontoObjetivo decimal.Decimal `json:"monto_objetivo"`
		MontoAhorrado decimal.Decimal `json:"monto_ahorrado"`
		FechaInicio   Date            `json:"fecha_inicio"`
	}
)

// Record is implemented by every stored resource.
type Record interface {
	RecordID() int64
}

func (n Named) RecordID() int64       { return n.ID }
func (e Expense) RecordID() int64     { return e.ID }
func (i Income) RecordID() int64      { return i.ID }
func (s SavingsGoal) RecordID() int64 { return s.ID }

// Owned is implemented by records that belong to a user.
type Owned interface {
	OwnerID() int64
}

func (e Expense) OwnerID() int64     { return e.UsuarioID }
func (i Income) OwnerID() int64      { return i.UsuarioID }
func (s SavingsGoal) OwnerID() int64 { return s.UsuarioID }

// ValidateCredentials checks the shape of a username/password pair.
func ValidateCredentials(username, password string) error {
	if len([]rune(username)) < MinUsernameLength {
		return Validation("username must be a string of at least %d characters", MinUsernameLength)
	}
	if len([]rune(password)) < MinPasswordLength {
		return Validation("password must be a string of at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return Validation("password must be at most %d bytes long", MaxPasswordBytes)
	}
	return nil
}

// NamedInput is the request body for categories, payment methods and income types.
type NamedInput struct {
	Nombre *string `json:"nombre"`
}

func (in NamedInput) ForCreate() (Named, error) {
	if in.Nombre == nil || strings.TrimSpace(*in.Nombre) == "" {
		return Named{}, Validation("missing required fields: nombre")
	}
	name := strings.TrimSpace(*in.Nombre)
	if len([]rune(name)) > maxNameLength {
		return Named{}, Validation("nombre must be at most %d characters", maxNameLength)
	}
	return Named{Nombre: name}, nil
}

func (in NamedInput) ForUpdate() (Named, error) {
	return in.ForCreate()
}

// ExpenseInput is the request body for expenses.
type ExpenseInput struct {
	UsuarioID    *int64           `json:"usuario_id"`
	CategoriaID  *int64           `json:"categoria_id"`
	MetodoPagoID *int64           `json:"metodopago_id"`
	Monto        *decimal.Decimal `json:"monto"`
	Descripcion  *string          `json:"descripcion"`
	Fecha        *Date            `json:"fecha"`
}

func (in ExpenseInput) ForCreate() (Expense, error) {
	var missing []string
	if !validID(in.UsuarioID) {
		missing = append(missing, "usuario_id")
	}
	if !validID(in.CategoriaID) {
		missing = append(missing, "categoria_id")
	}
	if !validID(in.MetodoPagoID) {
		missing = append(missing, "metodopago_id")
	}
	if in.Monto == nil {
		missing = append(missing, "monto")
	}
	if in.Fecha == nil || in.Fecha.IsZero() {
		missing = append(missing, "fecha")
	}
	if len(missing) > 0 {
		return Expense{}, missingFields(missing)
	}

	e := Expense{
		UsuarioID:    *in.UsuarioID,
		CategoriaID:  *in.CategoriaID,
		MetodoPagoID: *in.MetodoPagoID,
		Monto:        *in.Monto,
		Fecha:        *in.Fecha,
	}
	if in.Descripcion != nil && strings.TrimSpace(*in.Descripcion) != "" {
		desc := strings.TrimSpace(*in.Descripcion)
		e.Descripcion = &desc
	}
	return e, nil
}

func (in ExpenseInput) ForUpdate() (Expense, error) {
	return in.ForCreate()
}

// IncomeInput is the request body for income records. tipo_ingreso_id is
// accepted as an alias of tipoingreso_id.
type IncomeInput struct {
	UsuarioID           *int64           `json:"usuario_id"`
	TipoIngresoID       *int64           `json:"tipoingreso_id"`
	LegacyTipoIngresoID *int64           `json:"tipo_ingreso_id"`
	Monto               *decimal.Decimal `json:"monto"`
	Fecha               *Date            `json:"fecha"`
}

func (in IncomeInput) ForCreate() (Income, error) {
	if in.TipoIngresoID == nil {
		in.TipoIngresoID = in.LegacyTipoIngresoID
	}
	var missing []string
	if !validID(in.UsuarioID) {
		missing = append(missing, "usuario_id")
	}
	if !validID(in.TipoIngresoID) {
		missing = append(missing, "tipoingreso_id")
	}
	if in.Monto == nil {
		missing = append(missing, "monto")
	}
	if in.Fecha == nil || in.Fecha.IsZero() {
		missing = append(missing, "fecha")
	}
	if len(missing) > 0 {
		return Income{}, missingFields(missing)
	}
	return Income{
		UsuarioID:     *in.UsuarioID,
		TipoIngresoID: *in.TipoIngresoID,
		Monto:         *in.Monto,
		Fecha:         *in.Fecha,
	}, nil
}

func (in IncomeInput) ForUpdate() (Income, error) {
	return in.ForCreate()
}

// SavingsGoalInput is the request body for savings goals. On create the
// accumulated amount and start date are optional and default in the store.
type SavingsGoalInput struct {
	UsuarioID     *int64           `json:"usuario_id"`
	MontoObjetivo *decimal.Decimal `json:"monto_objetivo"`
	MontoAhorrado *decimal.Decimal `json:"monto_ahorrado"`
	FechaInicio   *Date            `json:"fecha_inicio"`
}

func (in SavingsGoalInput) ForCreate() (SavingsGoal, error) {
	var missing []string
	if !validID(in.UsuarioID) {
		missing = append(missing, "usuario_id")
	}
	if in.MontoObjetivo == nil {
		missing = append(missing, "monto_objetivo")
	}
	if len(missing) > 0 {
		return SavingsGoal{}, missingFields(missing)
	}
	if err := in.checkAmounts(); err != nil {
		return SavingsGoal{}, err
	}

	g := SavingsGoal{
		UsuarioID:     *in.UsuarioID,
		MontoObjetivo: *in.MontoObjetivo,
	}
	if in.MontoAhorrado != nil {
		g.MontoAhorrado = *in.MontoAhorrado
	}
	if in.FechaInicio != nil {
		g.FechaInicio = *in.FechaInicio
	}
	return g, nil
}

// ForUpdate replaces the whole row, so every column is required.
func (in SavingsGoalInput) ForUpdate() (SavingsGoal, error) {
	var missing []string
	if !validID(in.UsuarioID) {
		missing = append(missing, "usuario_id")
	}
	if in.MontoObjetivo == nil {
		missing = append(missing, "monto_objetivo")
	}
	if in.MontoAhorrado == nil {
		missing = append(missing, "monto_ahorrado")
	}
	if in.FechaInicio == nil || in.FechaInicio.IsZero() {
		missing = append(missing, "fecha_inicio")
	}
	if len(missing) > 0 {
		return SavingsGoal{}, missingFields(missing)
	}
	if err := in.checkAmounts(); err != nil {
		return SavingsGoal{}, err
	}
	return SavingsGoal{
		UsuarioID:     *in.UsuarioID,
		MontoObjetivo: *in.MontoObjetivo,
		MontoAhorrado: *in.MontoAhorrado,
		FechaInicio:   *in.FechaInicio,
	}, nil
}

func (in SavingsGoalInput) checkAmounts() error {
	if !in.MontoObjetivo.IsPositive() {
		return Validation("monto_objetivo must be a positive number")
	}
	if in.MontoAhorrado != nil && in.MontoAhorrado.IsNegative() {
		return Validation("monto_ahorrado must be a non-negative number")
	}
	return nil
}

func validID(id *int64) bool {
	return id != nil && *id > 0
}

func missingFields(fields []string) error {
	return Validation("missing required fields: %s", strings.Join(fields, ", "))
}
