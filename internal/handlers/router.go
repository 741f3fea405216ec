package handlers

import (
	"net/http"

	"github.com/nkiryanov/todoserver/internal/handlers/middleware"
	"github.com/nkiryanov/todoserver/internal/logger"
)

const (
	AccountsPrefix = "/accounts/api/v1"
	TodoPrefix     = "/todo/api/v1"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	accounts accountService,
	tasks todoService,
	auth authenticator,
	logger logger.Logger,
) http.Handler {
	root := http.NewServeMux()
	root.Handle(AccountsPrefix+"/", http.StripPrefix(AccountsPrefix, NewAccount(accounts, auth, logger).Handler()))
	root.Handle(TodoPrefix+"/", http.StripPrefix(TodoPrefix, NewTodo(tasks, auth, logger).Handler()))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}
