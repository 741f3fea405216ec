package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/repository"
	"github.com/nkiryanov/todoserver/internal/testutil"
)

func TestStorage_InTx(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("commit on success", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := NewStorage(tx)

			err := storage.InTx(t.Context(), func(s repository.Storage) error {
				_, err := s.User().CreateUser(t.Context(), "jane@example.com", "hash")
				return err
			})
			require.NoError(t, err)

			_, err = storage.User().GetUserByEmail(t.Context(), "jane@example.com")
			require.NoError(t, err, "user has to be visible after commit")
		})
	})

	t.Run("rollback on error", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := NewStorage(tx)
			boom := errors.New("boom")

			err := storage.InTx(t.Context(), func(s repository.Storage) error {
				_, err := s.User().CreateUser(t.Context(), "jane@example.com", "hash")
				require.NoError(t, err)
				return boom
			})
			require.ErrorIs(t, err, boom)

			_, err = storage.User().GetUserByEmail(t.Context(), "jane@example.com")
			require.ErrorIs(t, err, apperrors.ErrUserNotFound, "user must be rolled back")
		})
	})
}
