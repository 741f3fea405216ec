package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/todoserver/internal/db"
	"github.com/nkiryanov/todoserver/internal/models"
	"github.com/nkiryanov/todoserver/internal/repository"
	"github.com/nkiryanov/todoserver/internal/repository/postgres"
	"github.com/nkiryanov/todoserver/internal/service/auth"
	"github.com/nkiryanov/todoserver/internal/service/todo"
)

const (
	defaultNumber   = 5
	defaultPassword = "a/1234567"
)

type Config struct {
	DatabaseDSN string
	Email       string // random one is generated if empty
	Password    string
	Number      int
}

// Create verified user with a bunch of random tasks
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Getenv, os.Args[1:], os.Stdout); err != nil {
		slog.Error("seedtasks failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, getenv func(string) string, args []string, out io.Writer) error {
	c, err := parseConfig(getenv, args)
	if err != nil {
		return err
	}

	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	rnd := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	user, err := seed(ctx, postgres.NewStorage(pool), auth.BcryptHasher{}, c, rnd)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "Successfully created %d tasks for user: %s\n", c.Number, user.Email)
	return err
}

func parseConfig(getenv func(string) string, args []string) (Config, error) {
	c := Config{
		DatabaseDSN: getenv("DATABASE_URI"),
		Password:    defaultPassword,
		Number:      defaultNumber,
	}

	fs := pflag.NewFlagSet("seedtasks", pflag.ContinueOnError)
	fs.StringVarP(&c.DatabaseDSN, "database-uri", "d", c.DatabaseDSN, "Database connection string")
	fs.IntVarP(&c.Number, "number", "n", c.Number, "Number of tasks to create")
	fs.StringVar(&c.Email, "email", c.Email, "Email of the user to create, random if empty")
	fs.StringVar(&c.Password, "password", c.Password, "Password of the user to create")

	if err := fs.Parse(args); err != nil {
		return c, err
	}

	switch {
	case c.DatabaseDSN == "":
		return c, errors.New("database uri is required")
	case c.Number < 1:
		return c, fmt.Errorf("number of tasks must be positive, got %d", c.Number)
	case c.Password == "":
		return c, errors.New("password is required")
	}

	return c, nil
}

// User and tasks are created at once or not at all
func seed(ctx context.Context, storage repository.Storage, hasher auth.PasswordHasher, c Config, rnd *rand.Rand) (models.User, error) {
	email := c.Email
	if email == "" {
		email = fakeEmail(rnd)
	}

	hash, err := hasher.Hash(c.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("error while hashing password. Err: %w", err)
	}

	var user models.User
	err = storage.InTx(ctx, func(s repository.Storage) error {
		user, err = s.User().CreateUser(ctx, email, hash)
		if err != nil {
			return fmt.Errorf("user could not be created. Err: %w", err)
		}
		user, err = s.User().SetVerified(ctx, user.ID)
		if err != nil {
			return err
		}

		tasks := todo.NewService(s.Task())
		for range c.Number {
			if _, err := tasks.Create(ctx, user, fakeSentence(rnd), rnd.IntN(2) == 1); err != nil {
				return fmt.Errorf("task could not be created. Err: %w", err)
			}
		}
		return nil
	})

	return user, err
}

var words = []string{
	"buy", "milk", "call", "mom", "walk", "the", "dog", "fix", "bike", "read",
	"book", "water", "plants", "pay", "bills", "clean", "kitchen", "write", "report", "book",
	"tickets", "check", "mail", "cook", "dinner", "plan", "trip", "renew", "passport", "visit",
}

func fakeSentence(rnd *rand.Rand) string {
	n := 3 + rnd.IntN(6)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = words[rnd.IntN(len(words))]
	}

	sentence := strings.Join(parts, " ")
	return strings.ToUpper(sentence[:1]) + sentence[1:] + "."
}

func fakeEmail(rnd *rand.Rand) string {
	return fmt.Sprintf("%s.%08x@example.com", words[rnd.IntN(len(words))], rnd.Uint32())
}
