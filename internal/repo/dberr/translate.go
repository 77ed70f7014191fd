package dberr

import (
	"errors"
	"regexp"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeNotNullViolation    = "23502"
	codeInvalidTextRepr     = "22P02"
)

// unique violation detail looks like: Key (email)=(rody@correo.com) already exists.
var keyDetail = regexp.MustCompile(`Key \((.*?)\)=\((.*?)\)`)

// Translate maps a storage error onto the domain error kinds. Errors that are
// already classified pass through untouched, so calling it on the way out of
// every operation translates each failure exactly once.
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}

	if user.IsDomain(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return &user.StorageError{Op: op, Err: err}
	}

	switch pgErr.Code {
	case codeForeignKeyViolation:
		return user.ErrReferencedEntity

	case codeUniqueViolation:
		field, value := "value", ""
		if m := keyDetail.FindStringSubmatch(pgErr.Detail); m != nil {
			field, value = m[1], m[2]
		} else if pgErr.ColumnName != "" {
			field = pgErr.ColumnName
		}
		return &user.ColumnError{Kind: user.ErrDuplicateValue, Field: field, Value: value}

	case codeNotNullViolation:
		field := pgErr.ColumnName
		if field == "" {
			field = "value"
		}
		return &user.ColumnError{Kind: user.ErrMissingRequiredField, Field: field}

	case codeInvalidTextRepr:
		field := pgErr.ColumnName
		if field == "" {
			field = "value"
		}
		return &user.ColumnError{Kind: user.ErrInvalidFieldType, Field: field, ExpectedType: expectedType(pgErr.Message)}

	default:
		return &user.StorageError{Op: op, Err: err}
	}
}

// invalid input syntax for type uuid: "abc"
var typeInMessage = regexp.MustCompile(`for type ([a-z0-9_ ]+)`)

func expectedType(msg string) string {
	if m := typeInMessage.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return "the column type"
}
