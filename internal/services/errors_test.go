package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueConstraintError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm duplicated key", err: fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "postgres unique violation", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "postgres foreign key violation", err: &pgconn.PgError{Code: "23503", Message: "violates unique-looking fk"}, want: false},
		{name: "mysql duplicate entry", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, want: true},
		{name: "mysql lock wait", err: &mysql.MySQLError{Number: 1205, Message: "duplicate lock request"}, want: false},
		{name: "sqlite unique", err: errors.New("UNIQUE constraint failed: invitations.organization_id, invitations.email"), want: true},
		{name: "unrelated unique wording", err: errors.New("could not acquire unique advisory lock"), want: false},
		{name: "unrelated duplicate wording", err: errors.New("duplicate column name in select list"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, isUniqueConstraintError(tc.err))
		})
	}
}
