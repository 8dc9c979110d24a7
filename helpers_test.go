package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/safeedu/go-auth"
	authdb "github.com/safeedu/go-auth/repository"
)

var (
	keysOnce   sync.Once
	accessPEM  string
	refreshPEM string
)

func testKeys(t *testing.T) (string, string) {
	t.Helper()
	keysOnce.Do(func() {
		accessPEM = generatePEM()
		refreshPEM = generatePEM()
	})
	return accessPEM, refreshPEM
}

func generatePEM() string {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

type testConfig struct {
	accessKey   string
	refreshKey  string
	accessTTL   int
	refreshTTL  int
	issuer      string
	audience    []string
	contextKey  string
	hashCost    int
	phoneRegion string
	tokenLookup string
	authScheme  string
}

func newTestConfig(t *testing.T) *testConfig {
	access, refresh := testKeys(t)
	return &testConfig{
		accessKey:   access,
		refreshKey:  refresh,
		accessTTL:   900,
		refreshTTL:  3600,
		issuer:      "safeedu-auth-test",
		audience:    []string{"safeedu"},
		contextKey:  "user",
		hashCost:    4,
		phoneRegion: "VN",
		tokenLookup: "header:Authorization",
		authScheme:  "Bearer",
	}
}

func (c *testConfig) GetAccessTokenPrivateKey() string  { return c.accessKey }
func (c *testConfig) GetRefreshTokenPrivateKey() string { return c.refreshKey }
func (c *testConfig) GetAccessTokenExpiration() int     { return c.accessTTL }
func (c *testConfig) GetRefreshTokenExpiration() int    { return c.refreshTTL }
func (c *testConfig) GetIssuer() string                 { return c.issuer }
func (c *testConfig) GetAudience() []string             { return c.audience }
func (c *testConfig) GetContextKey() string             { return c.contextKey }
func (c *testConfig) GetTokenLookup() string            { return c.tokenLookup }
func (c *testConfig) GetAuthScheme() string             { return c.authScheme }
func (c *testConfig) GetRefreshTokenHashCost() int      { return c.hashCost }
func (c *testConfig) GetPhoneRegion() string            { return c.phoneRegion }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// recordingSink keeps every activity event it receives
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := authdb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, authdb.CreateSchema(context.Background(), db))
	return db
}

type fixture struct {
	db     *bun.DB
	repo   auth.RepositoryManager
	config *testConfig
	sink   *recordingSink
	auther *auth.Auther
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	repo := auth.NewRepositoryManager(db)
	cfg := newTestConfig(t)
	sink := &recordingSink{}

	auther := auth.NewAuthenticator(repo, cfg).
		WithLogger(nopLogger{}).
		WithActivitySink(sink)

	return &fixture{db: db, repo: repo, config: cfg, sink: sink, auther: auther}
}

func (f *fixture) count(t *testing.T, model any) int {
	t.Helper()
	n, err := f.db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) seedAdmin(t *testing.T, email string) *auth.Admin {
	t.Helper()
	admin, err := auth.NewSeedAdminHandler(f.repo).Execute(context.Background(), auth.SeedAdminMessage{
		Email:     email,
		FirstName: "Lan",
		LastName:  "Nguyen",
	})
	require.NoError(t, err)
	return admin
}

func studentMessage(phone string) auth.SignUpStudentMessage {
	return auth.SignUpStudentMessage{
		FirstName:      "Minh",
		LastName:       "Tran",
		PhoneNumber:    phone,
		OrganizationID: "school-12",
	}
}

func citizenMessage(phone string) auth.SignUpCitizenMessage {
	return auth.SignUpCitizenMessage{
		FirstName:   "Hoa",
		LastName:    "Le",
		PhoneNumber: phone,
	}
}
