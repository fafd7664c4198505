//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/auditline-platform/auditline/internal/api"
	"github.com/auditline-platform/auditline/internal/auditevent"
	"github.com/auditline-platform/auditline/internal/auth"
	"github.com/auditline-platform/auditline/internal/authz"
	"github.com/auditline-platform/auditline/internal/config"
	"github.com/auditline-platform/auditline/internal/directory"
)

const (
	testTablePrefix = "auditlog_"
	testTTLDays     = 90
)

type TestEnv struct {
	Pool   *pgxpool.Pool
	Repo   auditevent.Repository
	Server *httptest.Server
	JWT    *auth.JWTManager

	// Directory is the in-memory directory backing the fake directory
	// service. Tests add users and domain owners here.
	Directory *FakeDirectoryServer
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "auditline_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/auditline_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Fake directory service
	fakeDir := NewFakeDirectoryServer(t)

	// Services
	repo := auditevent.NewRepository(pool, testTablePrefix, testTTLDays)
	svc := auditevent.NewService(repo, config.AuditConfig{
		TablePrefix:  testTablePrefix,
		TTLDays:      testTTLDays,
		MaxLimit:     500,
		DefaultLimit: 100,
	})

	dirClient := directory.NewHTTPClient(config.DirectoryConfig{
		BaseURL: fakeDir.URL(),
		Timeout: 5 * time.Second,
	})
	gate := authz.NewGate(dirClient)

	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", 15*time.Minute)
	handler := auditevent.NewHandler(svc, gate)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		ListDomainEvents:   handler.ListDomainEvents,
		ListUserEvents:     handler.ListUserEvents,
		DeleteDomainEvents: handler.DeleteDomainEvents,

		AuthMiddleware: auth.Middleware(jwtManager),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:      pool,
		Repo:      repo,
		Server:    server,
		JWT:       jwtManager,
		Directory: fakeDir,
	}

	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// FakeDirectoryServer serves the two directory endpoints the service uses.
type FakeDirectoryServer struct {
	srv    *httptest.Server
	Users  map[string]directory.UserInfo
	Owners map[string]string
}

func NewFakeDirectoryServer(t *testing.T) *FakeDirectoryServer {
	t.Helper()

	f := &FakeDirectoryServer{
		Users:  map[string]directory.UserInfo{},
		Owners: map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		info, ok := f.Users[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(info)
	})
	mux.HandleFunc("GET /domains/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		owner, ok := f.Owners[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": id, "owner": owner})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *FakeDirectoryServer) URL() string { return f.srv.URL }

// AddUser registers a user with the audit feature enabled.
func (f *FakeDirectoryServer) AddUser(userID, login, domainID string) {
	f.Users[userID] = directory.UserInfo{
		UserID: userID, Login: login, DomainID: domainID, AuditEnabled: true,
	}
}

// AddDomain registers a domain with the given owner as its sole admin.
func (f *FakeDirectoryServer) AddDomain(domainID, ownerID string) {
	f.Owners[domainID] = ownerID
}

// Helper functions

func Token(t *testing.T, env *TestEnv, userID string) string {
	t.Helper()
	token, err := env.JWT.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return token
}

func DoRequest(t *testing.T, env *TestEnv, method, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, env.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}

func ParsePage(t *testing.T, resp *http.Response) auditevent.Page {
	t.Helper()
	defer resp.Body.Close()
	var page auditevent.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("parsing page: %v", err)
	}
	return page
}
