package middleware

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/queue"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// Pipeline summarizes text and predicts how long that takes.
type Pipeline interface {
	queue.Summarizer
	Estimate(ctx context.Context, text string) time.Duration
}

// Downloader hands out temporary links to exported results.
type Downloader interface {
	DownloadLink(ctx context.Context, key, publicEndpoint string) (string, error)
}

// JobRunner runs a job in process when no queue is configured.
type JobRunner interface {
	Handle(ctx context.Context, msg queue.SummarizeMsg) (queue.ResultMsg, error)
}

// App holds the dependencies shared by every request. Key, Publisher,
// Runner and Downloader are optional. Key resolves JWT signing keys,
// usually from a JWKS endpoint.
type App struct {
	Pipeline       Pipeline
	Loader         queue.TextLoader
	Store          store.JobStore
	Publisher      queue.Publisher
	Queue          string
	Runner         JobRunner
	Downloader     Downloader
	PublicEndpoint string
	Key            jwt.Keyfunc
	APIKey         string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
