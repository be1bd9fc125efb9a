package serverapp

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tablegraph/internal/coltype"
	"tablegraph/internal/config"
	"tablegraph/internal/dbexec"
	"tablegraph/internal/generator"
	"tablegraph/internal/logging"
	"tablegraph/internal/membackend"
	"tablegraph/internal/middleware"
	"tablegraph/internal/naming"
	"tablegraph/internal/observability"
	"tablegraph/internal/relational"
	"tablegraph/internal/schema"
	"tablegraph/internal/schemafilter"
	"tablegraph/internal/sqlbackend"
	"tablegraph/internal/tlscert"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          logsConfig.Endpoint,
			Protocol:          logsConfig.Protocol,
			Insecure:          logsConfig.Insecure,
			TLSCertFile:       logsConfig.TLSCertFile,
			TLSClientCertFile: logsConfig.TLSClientCertFile,
			TLSClientKeyFile:  logsConfig.TLSClientKeyFile,
			Headers:           logsConfig.Headers,
			Timeout:           logsConfig.Timeout,
			Compression:       logsConfig.Compression,
			RetryEnabled:      logsConfig.RetryEnabled,
			RetryMaxAttempts:  logsConfig.RetryMaxAttempts,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("OpenTelemetry logging initialized successfully")

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.GraphQLMetrics, *observability.SchemaCompileMetrics, *observability.SecurityMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	)

	meterProvider, err := observability.InitMeterProvider(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
		OTLPConfig:     observability.OTLPExporterConfig{},
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logger.Info("OpenTelemetry metrics initialized successfully")

	graphqlMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	schemaCompileMetrics, err := observability.InitSchemaCompileMetrics(logger.Logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	securityMetrics, err := observability.InitSecurityMetrics()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger.Info("security metrics initialized")

	return meterProvider, graphqlMetrics, schemaCompileMetrics, securityMetrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Bool("insecure", tracesConfig.Insecure),
	)

	tracerProvider, err := observability.InitTracerProvider(observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          tracesConfig.Endpoint,
			Protocol:          tracesConfig.Protocol,
			Insecure:          tracesConfig.Insecure,
			TLSCertFile:       tracesConfig.TLSCertFile,
			TLSClientCertFile: tracesConfig.TLSClientCertFile,
			TLSClientKeyFile:  tracesConfig.TLSClientKeyFile,
			Headers:           tracesConfig.Headers,
			Timeout:           tracesConfig.Timeout,
			Compression:       tracesConfig.Compression,
			RetryEnabled:      tracesConfig.RetryEnabled,
			RetryMaxAttempts:  tracesConfig.RetryMaxAttempts,
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("OpenTelemetry tracing initialized successfully")

	return tracerProvider, nil
}

func connectDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	var db *sql.DB
	var dbStatsReg interface{ Unregister() error }

	// Register custom TLS configuration if needed (for verify-ca/verify-full modes)
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}

	dsn := cfg.Database.DSN()
	if cfg.Server.Auth.DBRoleEnabled {
		// Role grants supply database access, so the pool connects without a
		// default database and the role executor issues USE per operation.
		dsn = cfg.Database.DSNWithoutDatabase()
	}

	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		opts := []otelsql.Option{
			otelsql.WithAttributes(semconv.DBSystemMySQL),
		}

		if cfg.Observability.TracingEnabled {
			opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{
				DisableErrSkip: true,
			}))
		}

		if cfg.Observability.SQLCommenterEnabled && cfg.Observability.TracingEnabled {
			opts = append(opts, otelsql.WithSQLCommenter(true))
			logger.Info("SQLCommenter enabled - trace context will be injected into SQL queries")
		} else if cfg.Observability.SQLCommenterEnabled && !cfg.Observability.TracingEnabled {
			logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
		}

		var err error
		db, err = otelsql.Open("mysql", dsn, opts...)
		if err != nil {
			return nil, nil, err
		}

		if cfg.Observability.MetricsEnabled {
			dbStatsReg, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemMySQL))
			if err != nil {
				logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
			}
		}

		logger.Info("database instrumentation enabled",
			slog.Bool("metrics", cfg.Observability.MetricsEnabled),
			slog.Bool("tracing", cfg.Observability.TracingEnabled),
			slog.Bool("sqlcommenter", cfg.Observability.SQLCommenterEnabled && cfg.Observability.TracingEnabled),
		)
		return db, dbStatsReg, nil
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, err
	}
	return db, nil, nil
}

func configureDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB, effectiveDatabase string, databaseSource string, dsnPresent bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Database.Pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg, logger, db); err != nil {
		return err
	}

	logger.Info("connected to database",
		slog.String("database_effective", effectiveDatabase),
		slog.String("database_source", databaseSource),
		slog.Bool("dsn_present", dsnPresent),
		slog.Int("pool_max_open", cfg.Database.Pool.MaxOpen),
		slog.Int("pool_max_idle", cfg.Database.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", cfg.Database.Pool.MaxLifetime),
	)
	return nil
}

func waitForDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Database.ConnectionTimeout
	interval := cfg.Database.ConnectionRetryInterval

	// If timeout is 0, try once and fail immediately
	if timeout == 0 {
		return db.PingContext(ctx)
	}

	deadline := time.Now().Add(timeout)
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := db.PingContext(ctx)

		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		time.Sleep(interval)

		// Exponential backoff, capped at 30s
		interval = min(interval*2, 30*time.Second)
	}
}

func buildQueryExecutor(cfg *config.Config, db *sql.DB, effectiveDatabase string) dbexec.QueryExecutor {
	queryExecutor := dbexec.QueryExecutor(dbexec.NewStandardExecutor(db))
	if cfg.Server.Auth.DBRoleEnabled {
		queryExecutor = dbexec.NewRoleExecutor(dbexec.RoleExecutorConfig{
			DB:           db,
			DatabaseName: effectiveDatabase,
			RoleFromCtx: func(ctx context.Context) (string, bool) {
				role, ok := middleware.DBRoleFromContext(ctx)
				return role.Role, ok && role.Validated
			},
			AllowedRoles: cfg.Server.Auth.DBRoleAllowedRoles,
			ValidateRole: true,
		})
	}
	return queryExecutor
}

// buildRelationalLayer selects the data access layer from configuration and
// acquires whatever it needs, registering releases on cleanup. The returned
// *sql.DB and executor are nil for the memory backend.
func buildRelationalLayer(ctx context.Context, cfg *config.Config, logger *logging.Logger, declaration *schema.Schema, effectiveDatabase string, databaseSource string, dsnPresent bool, cleanup *cleanupStack) (relational.Layer, *sql.DB, dbexec.QueryExecutor, error) {
	if cfg.Database.Backend == "memory" {
		logger.Info("using in-memory backend",
			slog.Int("tables", len(declaration.Tables)),
		)
		return membackend.New(declaration), nil, nil, nil
	}

	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("database_effective", effectiveDatabase),
		slog.String("database_source", databaseSource),
		slog.Bool("dsn_present", dsnPresent),
	)

	db, dbStatsReg, err := connectDB(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanup.push("database", func(_ context.Context) error {
		if dbStatsReg != nil {
			if err := dbStatsReg.Unregister(); err != nil {
				logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return db.Close()
	})

	if err := configureDatabase(ctx, cfg, logger, db, effectiveDatabase, databaseSource, dsnPresent); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	queryExecutor := buildQueryExecutor(cfg, db, effectiveDatabase)
	return sqlbackend.New(queryExecutor, declaration), db, queryExecutor, nil
}

func loadDeclaration(cfg *config.Config, logger *logging.Logger) (*schema.Schema, error) {
	declaration, err := schema.LoadFile(cfg.Schema.File)
	if err != nil {
		return nil, err
	}

	declared := len(declaration.Tables)
	schemafilter.Apply(declaration, cfg.Schema.Filters)

	logger.Info("schema declaration loaded",
		slog.String("file", cfg.Schema.File),
		slog.Int("tables", len(declaration.Tables)),
	)
	if pruned := declared - len(declaration.Tables); pruned > 0 {
		logger.Info("schema filters pruned tables", slog.Int("pruned", pruned))
	}

	if len(declaration.Tables) == 0 {
		return nil, fmt.Errorf("schema declaration %q has no tables after filtering", cfg.Schema.File)
	}

	return declaration, nil
}

func compileSchema(ctx context.Context, cfg *config.Config, logger *logging.Logger, declaration *schema.Schema, layer relational.Layer, metrics *observability.SchemaCompileMetrics) (*graphql.Schema, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	opts := generator.Options{
		DisableMutations: !cfg.Schema.MutationsEnabled,
		Geometry:         coltype.GeometryMode(cfg.Schema.Geometry),
		Namer:            naming.New(cfg.Schema.Naming, logger.Logger),
		Logger:           logger,
	}
	if cfg.Schema.Depth >= 0 {
		depth := cfg.Schema.Depth
		opts.Depth = &depth
	}

	gqlSchema, err := generator.Compile(declaration, layer, nil, nil, opts)
	if metrics != nil {
		metrics.RecordCompile(ctx, time.Since(start), err == nil, "startup")
	}
	if err != nil {
		return nil, "", err
	}

	fingerprint := declarationFingerprint(declaration)
	if metrics != nil {
		metrics.SetSchemaSize(len(declaration.Tables), countSchemaTypes(gqlSchema))
	}

	return gqlSchema, fingerprint, nil
}

// declarationFingerprint hashes the effective declaration so logs and spans
// can attribute a request to the schema build that served it. Filters run
// before hashing, so two deployments of one file with different filters
// fingerprint differently.
func declarationFingerprint(s *schema.Schema) string {
	hash := sha256.New()
	for ti := range s.Tables {
		table := &s.Tables[ti]
		fmt.Fprintf(hash, "%s\n", table.Name)
		for _, col := range table.Columns {
			fmt.Fprintf(hash, " c:%s|%s|%t|%t|%t\n", col.Name, col.Type, col.Nullable, col.PrimaryKey, col.HasDefault)
		}
		for _, rel := range table.Relations {
			fmt.Fprintf(hash, " r:%s|%s|%s\n", rel.Name, rel.Kind, rel.References)
		}
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// countSchemaTypes counts published types, excluding the introspection types
// every schema carries.
func countSchemaTypes(s *graphql.Schema) int {
	count := 0
	for name := range s.TypeMap() {
		if strings.HasPrefix(name, "__") {
			continue
		}
		count++
	}
	return count
}

func oidcAuthConfig(cfg *config.Config) middleware.OIDCAuthConfig {
	return middleware.OIDCAuthConfig{
		Enabled:   cfg.Server.Auth.OIDCEnabled,
		IssuerURL: cfg.Server.Auth.OIDCIssuerURL,
		Audience:  cfg.Server.Auth.OIDCAudience,
		ClockSkew: cfg.Server.Auth.OIDCClockSkew,
		CAFile:    cfg.Server.Auth.OIDCCAFile,
	}
}

func staticAuthConfig(cfg *config.Config) middleware.StaticAuthConfig {
	return middleware.StaticAuthConfig{
		Enabled: cfg.Server.Auth.StaticEnabled,
		Secret:  cfg.Server.Auth.StaticSecret,
	}
}

func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, gqlSchema *graphql.Schema, fingerprint string, graphqlMetrics *observability.GraphQLMetrics, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	graphqlHandler := handler.New(&handler.Config{
		Schema:     gqlSchema,
		Pretty:     true,
		GraphiQL:   cfg.Server.GraphiQLEnabled,
		Playground: true,
	})

	tracingHandler := middleware.GraphQLTracingMiddleware()(graphqlHandler)

	metricsHandler := tracingHandler
	if cfg.Observability.MetricsEnabled && graphqlMetrics != nil {
		metricsHandler = middleware.GraphQLMetricsMiddleware(graphqlMetrics)(tracingHandler)
		logger.Info("GraphQL metrics middleware enabled")
	}

	// Middleware order: bearer auth runs outermost so everything behind it
	// sees a validated token. DB role extraction reads claims auth placed in
	// context, and request analysis runs after role extraction so execution
	// metadata carries the active role. The chain is:
	//   request -> logging -> auth -> DB role -> analysis -> metrics -> tracing -> graphql
	analysisHandler := middleware.GraphQLRequestAnalysisMiddleware(fingerprint)(metricsHandler)

	dbRoleHandler := analysisHandler
	if cfg.Server.Auth.DBRoleEnabled {
		dbRoleHandler = middleware.DBRoleMiddleware(cfg.Server.Auth.DBRoleClaimName, cfg.Server.Auth.DBRoleAllowedRoles)(analysisHandler)
		logger.Info("database role middleware enabled")
	}

	authHandler := dbRoleHandler
	switch {
	case cfg.Server.Auth.OIDCEnabled:
		authMiddleware, err := middleware.OIDCAuthMiddleware(oidcAuthConfig(cfg), logger, securityMetrics)
		if err != nil {
			return nil, err
		}
		authHandler = authMiddleware(dbRoleHandler)
		logger.Info("OIDC auth middleware enabled")
	case cfg.Server.Auth.StaticEnabled:
		authMiddleware, err := middleware.StaticAuthMiddleware(staticAuthConfig(cfg), logger, securityMetrics)
		if err != nil {
			return nil, err
		}
		authHandler = authMiddleware(dbRoleHandler)
		logger.Info("static auth middleware enabled")
	}

	return middleware.LoggingMiddleware(logger)(authHandler), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db *sql.DB, graphqlHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/graphql", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/health", healthHandler(db, cfg.Server.HealthCheckTimeout))

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cfg.Server.CORSEnabled,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(handler)
	}

	if cfg.Server.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: cfg.Server.RateLimitEnabled,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(handler)
	}

	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/health", "/metrics":
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, logger *logging.Logger, handler http.Handler, serverAddr string) (*http.Server, tlscert.Manager, error) {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var tlsManager tlscert.Manager
	tlsEnabled := cfg.Server.TLSMode != "" && cfg.Server.TLSMode != "off"
	if tlsEnabled {
		// Map tls_mode to tlscert.CertMode
		var certMode tlscert.CertMode
		switch cfg.Server.TLSMode {
		case "auto":
			certMode = tlscert.CertModeSelfSigned
		case "file":
			certMode = tlscert.CertModeFile
		default:
			certMode = tlscert.CertMode(cfg.Server.TLSMode)
		}

		tlsConfig := tlscert.Config{
			Mode:              certMode,
			CertFile:          cfg.Server.TLSCertFile,
			KeyFile:           cfg.Server.TLSKeyFile,
			SelfSignedCertDir: cfg.Server.TLSAutoCertDir,
			SelfSignedHosts:   []string{"localhost", "127.0.0.1", "::1"},
		}

		var err error
		tlsManager, err = tlscert.NewManager(tlsConfig, logger.Logger)
		if err != nil {
			return nil, nil, err
		}

		srv.TLSConfig, err = tlsManager.GetTLSConfig()
		if err != nil {
			return nil, nil, err
		}

		logger.Info("TLS enabled",
			slog.String("mode", cfg.Server.TLSMode),
			slog.String("cert_source", tlsManager.Description()))
	}

	return srv, tlsManager, nil
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	tlsEnabled := cfg.Server.TLSMode != "" && cfg.Server.TLSMode != "off"
	go func() {
		protocol := "http"
		if tlsEnabled {
			protocol = "https"
		}

		logAttrs := []any{
			slog.String("protocol", protocol),
			slog.String("address", serverAddr),
			slog.String("backend", cfg.Database.Backend),
			slog.String("graphql_endpoint", "/graphql"),
			slog.String("health_endpoint", "/health"),
			slog.Bool("graphiql_enabled", cfg.Server.GraphiQLEnabled),
			slog.Bool("mutations_enabled", cfg.Schema.MutationsEnabled),
			slog.String("log_level", cfg.Observability.Logging.Level),
			slog.String("log_format", cfg.Observability.Logging.Format),
		}

		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}

		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}

		if tlsEnabled {
			logAttrs = append(logAttrs,
				slog.Bool("tls_enabled", true),
				slog.String("tls_mode", cfg.Server.TLSMode))
		} else {
			logAttrs = append(logAttrs, slog.Bool("tls_enabled", false))
		}

		logger.Info("server starting", logAttrs...)

		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// healthHandler returns an HTTP handler for health checks. A nil db means the
// memory backend is active, which has no external dependency to probe.
func healthHandler(db *sql.DB, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Get logger from context (with request ID if available)
		reqLogger := logging.FromContext(r.Context())

		w.Header().Set("Content-Type", "application/json")

		if db == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = fmt.Fprint(w, `{"status":"healthy"}`)
			return
		}

		// Check database connectivity with a short timeout
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			// Return generic error message to avoid leaking internal details
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}
