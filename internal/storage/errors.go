package storage

import (
	"errors"
	"fmt"
	"strings"

	"finanzas/internal/core"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type violation int

const (
	noViolation violation = iota
	uniqueViolation
	foreignKeyViolation
	checkViolation
	notNullViolation
	invalidValue
)

// Operation names used in error messages and classification.
const (
	opList   = "list"
	opGet    = "get"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// classify turns a driver error into the core error taxonomy. Constraint
// violations are caller mistakes; anything else is a dependency failure.
func classify(err error, label, op string) error {
	switch violationOf(err) {
	case uniqueViolation:
		return core.Conflict("%s already exists", label)
	case foreignKeyViolation:
		if op == opDelete {
			return core.Conflict("%s is still referenced by other records", label)
		}
		return core.Validation("referenced record does not exist")
	case checkViolation:
		return core.Validation("%s has an out of range value", label)
	case notNullViolation:
		return core.Validation("%s is missing a required field", label)
	case invalidValue:
		return core.Validation("%s has an invalid field value", label)
	}
	return core.Dependency(fmt.Sprintf("%s %s failed", op, label), err)
}

func notFoundError(label string, id int64) error {
	return core.NotFound("%s %d not found", label, id)
}

func violationOf(err error) violation {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return uniqueViolation
		case "23503":
			return foreignKeyViolation
		case "23514":
			return checkViolation
		case "23502":
			return notNullViolation
		}
		if pqErr.Code.Class() == "22" {
			return invalidValue
		}
		return noViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return uniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return foreignKeyViolation
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return checkViolation
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return notNullViolation
		}
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return violationFromMessage(liteErr.Error())
		}
	}
	return noViolation
}

// violationFromMessage covers connections opened without extended result codes.
func violationFromMessage(msg string) violation {
	switch {
	case strings.Contains(msg, "UNIQUE"):
		return uniqueViolation
	case strings.Contains(msg, "FOREIGN KEY"):
		return foreignKeyViolation
	case strings.Contains(msg, "CHECK"):
		return checkViolation
	case strings.Contains(msg, "NOT NULL"):
		return notNullViolation
	}
	return noViolation
}
