package main

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/repository"
	"github.com/nkiryanov/todoserver/internal/repository/postgres"
	"github.com/nkiryanov/todoserver/internal/service/auth"
	"github.com/nkiryanov/todoserver/internal/testutil"
)

func noEnv(string) string { return "" }

func Test_parseConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := parseConfig(func(key string) string {
			if key == "DATABASE_URI" {
				return "postgres://localhost/todo"
			}
			return ""
		}, nil)

		require.NoError(t, err)
		require.Equal(t, "postgres://localhost/todo", c.DatabaseDSN)
		require.Equal(t, 5, c.Number)
		require.Equal(t, "a/1234567", c.Password)
		require.Empty(t, c.Email)
	})

	t.Run("flags", func(t *testing.T) {
		c, err := parseConfig(noEnv, []string{"-d", "postgres://db/todo", "-n", "12", "--email", "jane@example.com", "--password", "secret"})

		require.NoError(t, err)
		require.Equal(t, Config{DatabaseDSN: "postgres://db/todo", Email: "jane@example.com", Password: "secret", Number: 12}, c)
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{"no database", nil},
			{"zero number", []string{"-d", "postgres://db/todo", "-n", "0"}},
			{"empty password", []string{"-d", "postgres://db/todo", "--password", ""}},
			{"unknown flag", []string{"-d", "postgres://db/todo", "--force"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := parseConfig(noEnv, tt.args)
				require.Error(t, err)
			})
		}
	})
}

func Test_fakeSentence(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))

	for range 100 {
		s := fakeSentence(rnd)
		require.True(t, strings.HasSuffix(s, "."), s)
		require.LessOrEqual(t, len(s), 255, "task content limit")
		require.Equal(t, strings.ToUpper(s[:1]), s[:1])
	}
}

func Test_seed(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	t.Run("user with tasks", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			rnd := rand.New(rand.NewPCG(1, 2))

			user, err := seed(t.Context(), storage, hasher, Config{Password: "a/1234567", Number: 7}, rnd)
			require.NoError(t, err)

			require.True(t, user.IsVerified)
			require.True(t, strings.HasSuffix(user.Email, "@example.com"), user.Email)
			require.NoError(t, hasher.Compare(user.HashedPassword, "a/1234567"))

			tasks, total, err := storage.Task().ListTasks(t.Context(), repository.ListTasksOpts{UserID: user.ID, Limit: 100})
			require.NoError(t, err)
			require.Equal(t, 7, total)
			for _, task := range tasks {
				require.NotEmpty(t, task.Content)
			}
		})
	})

	t.Run("existing email creates nothing", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			c := Config{Email: "jane@example.com", Password: "a/1234567", Number: 3}

			jane, err := seed(t.Context(), storage, hasher, c, rand.New(rand.NewPCG(1, 2)))
			require.NoError(t, err)

			_, err = seed(t.Context(), storage, hasher, c, rand.New(rand.NewPCG(3, 4)))
			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)

			_, total, err := storage.Task().ListTasks(t.Context(), repository.ListTasksOpts{UserID: jane.ID, Limit: 100})
			require.NoError(t, err)
			require.Equal(t, 3, total, "tasks of the second run must be rolled back")
		})
	})
}
