package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
	"github.com/nkiryanov/todoserver/internal/testutil"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func Test_UsedTokenRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	token := models.UsedToken{
		ID:        uuid.New(),
		Purpose:   "reset-password",
		ExpiresAt: mustParseTime("2200-01-01 03:00:02Z"),
	}

	t.Run("mark used ok", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UsedTokenRepo{DB: tx}

			got, err := repo.MarkUsed(t.Context(), token)

			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, token.Purpose, got.Purpose)
			require.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, time.Microsecond)
			require.WithinDuration(t, time.Now(), got.UsedAt, time.Second)
		})
	})

	t.Run("mark used twice", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UsedTokenRepo{DB: tx}
			_, err := repo.MarkUsed(t.Context(), token)
			require.NoError(t, err)

			_, err = repo.MarkUsed(t.Context(), token)

			require.ErrorIs(t, err, apperrors.ErrTokenUsed)
		})
	})

	t.Run("is used", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UsedTokenRepo{DB: tx}

			used, err := repo.IsUsed(t.Context(), token.ID)
			require.NoError(t, err)
			require.False(t, used)

			_, err = repo.MarkUsed(t.Context(), token)
			require.NoError(t, err)

			used, err = repo.IsUsed(t.Context(), token.ID)
			require.NoError(t, err)
			require.True(t, used)
		})
	})

	t.Run("delete expired", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UsedTokenRepo{DB: tx}
			expired := models.UsedToken{ID: uuid.New(), Purpose: "reset-password", ExpiresAt: mustParseTime("2024-01-01 00:00:00Z")}
			_, err := repo.MarkUsed(t.Context(), expired)
			require.NoError(t, err)
			_, err = repo.MarkUsed(t.Context(), token)
			require.NoError(t, err)

			deleted, err := repo.DeleteExpired(t.Context(), time.Now())

			require.NoError(t, err)
			require.EqualValues(t, 1, deleted, "only expired marker must be deleted")
			used, err := repo.IsUsed(t.Context(), token.ID)
			require.NoError(t, err)
			require.True(t, used, "not expired marker must stay")
		})
	})
}
