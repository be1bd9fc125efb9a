package serverapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/graphql-go/graphql"

	"tablegraph/internal/config"
	"tablegraph/internal/generator"
	"tablegraph/internal/membackend"
	"tablegraph/internal/schema"
)

func compileUsersSchema(t *testing.T) *graphql.Schema {
	t.Helper()

	s := &schema.Schema{Tables: []schema.Table{{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
			{Name: "name", Type: "varchar"},
		},
	}}}

	gqlSchema, err := generator.Compile(s, membackend.New(s), nil, nil, generator.Options{})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return gqlSchema
}

func TestBuildRouter_Routes(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{HealthCheckTimeout: time.Second},
	}
	graphqlHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux := buildRouter(cfg, testLogger(), nil, graphqlHandler, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected root to redirect, got status %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/graphql" {
		t.Fatalf("expected redirect to /graphql, got %q", loc)
	}

	req = httptest.NewRequest(http.MethodGet, "/users/123", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected unknown path to 404, got status %d", rec.Code)
	}

	// Metrics are disabled, so the route is not registered.
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected /metrics to 404 when metrics are disabled, got status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/graphql", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected /graphql to reach the handler, got status %d", rec.Code)
	}
}

func TestHealthHandler_NilDatabaseHealthy(t *testing.T) {
	h := healthHandler(nil, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy status, got %q", body["status"])
	}
	if _, ok := body["database"]; ok {
		t.Fatalf("expected no database probe without a pool, got %v", body)
	}
}

func TestHealthHandler_DatabaseProbe(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("sqlmock.New: %v", err)
		}
		defer db.Close()
		mock.ExpectPing()

		rec := httptest.NewRecorder()
		healthHandler(db, time.Second)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode health response: %v", err)
		}
		if body["database"] != "ok" {
			t.Fatalf("expected database ok, got %v", body)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("sqlmock.New: %v", err)
		}
		defer db.Close()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		rec := httptest.NewRecorder()
		healthHandler(db, time.Second)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode health response: %v", err)
		}
		if body["status"] != "unhealthy" || body["database"] != "failed" {
			t.Fatalf("expected unhealthy database, got %v", body)
		}
	})
}

func TestBuildGraphQLHandler_StaticAuthGatesRequests(t *testing.T) {
	const secret = "test-secret"

	gqlSchema := compileUsersSchema(t)
	cfg := &config.Config{
		Server: config.ServerConfig{
			Auth: config.AuthConfig{
				StaticEnabled: true,
				StaticSecret:  secret,
			},
		},
	}

	h, err := buildGraphQLHandler(cfg, testLogger(), gqlSchema, "fp", nil, nil)
	if err != nil {
		t.Fatalf("buildGraphQLHandler failed: %v", err)
	}

	query := `{"query": "{ users { name } }"}`

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d without a token, got %d", http.StatusUnauthorized, rec.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "svc-reporting",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d with a valid token, got %d (body=%s)", http.StatusOK, rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"data"`) {
		t.Fatalf("expected a data payload, got %s", rec.Body.String())
	}
}

func TestBuildGraphQLHandler_OIDCMisconfigured(t *testing.T) {
	gqlSchema := compileUsersSchema(t)
	cfg := &config.Config{
		Server: config.ServerConfig{
			Auth: config.AuthConfig{
				OIDCEnabled: true,
			},
		},
	}

	_, err := buildGraphQLHandler(cfg, testLogger(), gqlSchema, "fp", nil, nil)
	if err == nil {
		t.Fatalf("expected OIDC setup error, got nil")
	}
	if !strings.Contains(err.Error(), "issuer/audience not configured") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeclarationFingerprint_TracksStructure(t *testing.T) {
	base := func() *schema.Schema {
		return &schema.Schema{Tables: []schema.Table{
			{
				Name: "users",
				Columns: []schema.Column{
					{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
					{Name: "name", Type: "varchar"},
				},
				Relations: []schema.Relation{{
					Name:       "posts",
					Kind:       schema.RelationMany,
					References: "posts",
					Keys:       []schema.JoinKey{{LocalColumn: "id", ReferencedColumn: "author_id"}},
				}},
			},
			{
				Name: "posts",
				Columns: []schema.Column{
					{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
					{Name: "author_id", Type: "bigint"},
				},
			},
		}}
	}

	first := declarationFingerprint(base())
	second := declarationFingerprint(base())
	if first != second {
		t.Fatalf("identical declarations should fingerprint identically: %q vs %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected a sha256 hex fingerprint, got %q", first)
	}

	withColumn := base()
	withColumn.Tables[0].Columns = append(withColumn.Tables[0].Columns, schema.Column{Name: "email", Type: "varchar", Nullable: true})
	if got := declarationFingerprint(withColumn); got == first {
		t.Fatalf("adding a column should change the fingerprint")
	}

	withoutRelation := base()
	withoutRelation.Tables[0].Relations = nil
	if got := declarationFingerprint(withoutRelation); got == first {
		t.Fatalf("dropping a relation should change the fingerprint")
	}
}
