package storage

import (
	"context"
	"database/sql"
	"errors"

	"finanzas/internal/core"
)

const userLabel = "user"

// UserStore persists identities in the usuarios table.
type UserStore struct {
	db *sql.DB
}

// FindByName returns the user with the given display name, including its
// stored secret.
func (s *UserStore) FindByName(ctx context.Context, nombre string) (core.Credential, error) {
	var (
		c       core.Credential
		creado  timestamp
		secret  string
		address sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, contrasena, email, creado_en FROM usuarios WHERE nombre = $1`,
		nombre,
	).Scan(&c.ID, &c.Nombre, &secret, &address, &creado)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Credential{}, core.NotFound("user not found")
	}
	if err != nil {
		return core.Credential{}, classify(err, userLabel, opGet)
	}
	c.Secret = secret
	c.CreadoEn = creado.Time
	if address.Valid {
		c.Email = &address.String
	}
	return c, nil
}

// Create inserts a user with an already hashed secret.
func (s *UserStore) Create(ctx context.Context, nombre, secret string) (core.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`INSERT INTO usuarios (nombre, contrasena) VALUES ($1, $2) RETURNING id, nombre, email, creado_en`,
		nombre, secret,
	))
	if err != nil {
		return core.User{}, classify(err, userLabel, opCreate)
	}
	return u, nil
}

// UpdateSecret replaces the stored secret of a user.
func (s *UserStore) UpdateSecret(ctx context.Context, id int64, secret string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE usuarios SET contrasena = $1 WHERE id = $2`, secret, id)
	if err != nil {
		return classify(err, userLabel, opUpdate)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundError(userLabel, id)
	}
	return nil
}

// List returns every user ordered by id. Secrets are not selected.
func (s *UserStore) List(ctx context.Context) ([]core.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, nombre, email, creado_en FROM usuarios ORDER BY id`)
	if err != nil {
		return nil, classify(err, userLabel, opList)
	}
	defer rows.Close()

	users := make([]core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, classify(err, userLabel, opList)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, userLabel, opList)
	}
	return users, nil
}

func scanUser(s Scanner) (core.User, error) {
	var (
		u       core.User
		creado  timestamp
		address sql.NullString
	)
	if err := s.Scan(&u.ID, &u.Nombre, &address, &creado); err != nil {
		return core.User{}, err
	}
	u.CreadoEn = creado.Time
	if address.Valid {
		u.Email = &address.String
	}
	return u, nil
}
