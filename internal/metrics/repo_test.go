package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/marketpulse/internal/shared"
)

func TestTranslateWriteErrorMapsFKViolation(t *testing.T) {
	err := translateWriteError(&pgconn.PgError{Code: "23503", Message: "fk violation"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "offer vanished during run")

	wrapped := translateWriteError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23503"}))
	require.ErrorIs(t, wrapped, shared.ErrNotFound)
}

func TestTranslateWriteErrorPassesThroughOtherErrors(t *testing.T) {
	err := translateWriteError(errors.New("connection reset"))
	require.NotErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "connection reset")

	err = translateWriteError(&pgconn.PgError{Code: "23505"})
	require.NotErrorIs(t, err, shared.ErrNotFound)
}
