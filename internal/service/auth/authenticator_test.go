package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
	"github.com/nkiryanov/todoserver/internal/repository/postgres"
	"github.com/nkiryanov/todoserver/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/todoserver/internal/testutil"
)

func request(header string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return r
}

func Test_GenerateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, key, 40)

	other, err := GenerateKey()
	require.NoError(t, err)
	require.NotEqual(t, key, other)
}

func Test_Authenticators(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret-key"})
	require.NoError(t, err)

	testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		user, err := storage.User().CreateUser(t.Context(), "jane@example.com", "hash")
		require.NoError(t, err)
		_, err = storage.AuthToken().GetOrCreate(t.Context(), user.ID, "jane-key")
		require.NoError(t, err)

		_, err = tx.Exec(t.Context(), "INSERT INTO users (id, email, password_hash, is_active) VALUES (gen_random_uuid(), 'inactive@example.com', 'hash', FALSE)")
		require.NoError(t, err)
		inactive, err := storage.User().GetUserByEmail(t.Context(), "inactive@example.com")
		require.NoError(t, err)
		_, err = storage.AuthToken().GetOrCreate(t.Context(), inactive.ID, "inactive-key")
		require.NoError(t, err)

		opaque := OpaqueAuthenticator{Tokens: storage.AuthToken()}
		jwtAuth := JWTAuthenticator{Tokens: tokens, Users: storage.User()}

		access := func(u models.User) string {
			issued, err := tokens.Issue(u.ID, tokenmanager.PurposeAccess)
			require.NoError(t, err)
			return issued.Value
		}

		t.Run("opaque", func(t *testing.T) {
			got, err := opaque.Authenticate(t.Context(), request("Token jane-key"))
			require.NoError(t, err)
			require.Equal(t, user.ID, got.ID)

			_, err = opaque.Authenticate(t.Context(), request("token jane-key"))
			require.NoError(t, err, "scheme is case insensitive")

			_, err = opaque.Authenticate(t.Context(), request(""))
			require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)

			_, err = opaque.Authenticate(t.Context(), request("Bearer jane-key"))
			require.ErrorIs(t, err, apperrors.ErrNotAuthenticated, "other scheme is not ours")

			_, err = opaque.Authenticate(t.Context(), request("Token unknown"))
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

			_, err = opaque.Authenticate(t.Context(), request("Token inactive-key"))
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		})

		t.Run("jwt", func(t *testing.T) {
			got, err := jwtAuth.Authenticate(t.Context(), request("Bearer "+access(user)))
			require.NoError(t, err)
			require.Equal(t, user.ID, got.ID)

			_, err = jwtAuth.Authenticate(t.Context(), request("Token jane-key"))
			require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)

			_, err = jwtAuth.Authenticate(t.Context(), request("Bearer garbage"))
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

			refresh, err := tokens.Issue(user.ID, tokenmanager.PurposeRefresh)
			require.NoError(t, err)
			_, err = jwtAuth.Authenticate(t.Context(), request("Bearer "+refresh.Value))
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "refresh token can't authenticate requests")

			expired, err := tokens.IssueWithTTL(user.ID, tokenmanager.PurposeAccess, -time.Minute)
			require.NoError(t, err)
			_, err = jwtAuth.Authenticate(t.Context(), request("Bearer "+expired.Value))
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

			_, err = jwtAuth.Authenticate(t.Context(), request("Bearer "+access(models.User{ID: inactive.ID})))
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

			_, err = jwtAuth.Authenticate(t.Context(), request("Bearer "+access(models.User{ID: uuid.New()})))
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "unknown subject")
		})

		t.Run("chain", func(t *testing.T) {
			chain := ChainAuthenticator{opaque, jwtAuth}

			got, err := chain.Authenticate(t.Context(), request("Token jane-key"))
			require.NoError(t, err)
			require.Equal(t, user.ID, got.ID)

			got, err = chain.Authenticate(t.Context(), request("Bearer "+access(user)))
			require.NoError(t, err)
			require.Equal(t, user.ID, got.ID)

			_, err = chain.Authenticate(t.Context(), request("Basic amFuZTpwd2Q="))
			require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)

			_, err = chain.Authenticate(t.Context(), request("Token unknown"))
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		})
	})
}

// Allow to use a function as authenticator
type authenticatorFunc func(ctx context.Context, r *http.Request) (models.User, error)

func (f authenticatorFunc) Authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	return f(ctx, r)
}

func Test_ChainAuthenticator_Order(t *testing.T) {
	var calls []string
	authenticator := func(name string, err error) Authenticator {
		return authenticatorFunc(func(ctx context.Context, r *http.Request) (models.User, error) {
			calls = append(calls, name)
			return models.User{Email: name}, err
		})
	}

	chain := ChainAuthenticator{
		authenticator("first", apperrors.ErrNotAuthenticated),
		authenticator("second", nil),
		authenticator("third", nil),
	}

	user, err := chain.Authenticate(t.Context(), request(""))

	require.NoError(t, err)
	require.Equal(t, "second", user.Email)
	require.Equal(t, []string{"first", "second"}, calls, "chain must stop on first authenticator found credentials")
}
