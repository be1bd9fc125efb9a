package serverapp

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/graphql-go/graphql"

	"tablegraph/internal/config"
	"tablegraph/internal/dbexec"
	"tablegraph/internal/logging"
	"tablegraph/internal/observability"
	"tablegraph/internal/relational"
	"tablegraph/internal/schema"
	"tablegraph/internal/tlscert"
)

// App owns runtime resources for the tablegraph server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	effectiveDatabase string
	databaseSource    string
	dsnPresent        bool

	meterProvider        *observability.MeterProvider
	graphqlMetrics       *observability.GraphQLMetrics
	schemaCompileMetrics *observability.SchemaCompileMetrics
	securityMetrics      *observability.SecurityMetrics
	tracerProvider       *observability.TracerProvider

	db            *sql.DB
	queryExecutor dbexec.QueryExecutor
	layer         relational.Layer

	declaration *schema.Schema
	gqlSchema   *graphql.Schema
	fingerprint string

	graphqlHandler http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server
	tlsManager tlscert.Manager

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	app := &App{
		cfg:    cfg,
		logger: logger,
	}

	// The memory backend has no database to name; connection fields stay zero.
	if cfg.Database.Backend != "memory" {
		effectiveDatabase, databaseSource, err := cfg.Database.EffectiveDatabaseName()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve effective database configuration: %w", err)
		}
		app.effectiveDatabase = effectiveDatabase
		app.databaseSource = databaseSource
		app.dsnPresent = strings.TrimSpace(cfg.Database.ConnectionString) != ""
	}

	return app, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}
