package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/auth"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/config"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/credential"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/otp"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/permission"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/repository/memrepo"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/session"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/token"
)

const (
	testSecret     = "test-secret"
	testCookieName = "__test_token"
	adminEmail     = "admin@example.com"
)

type codeBook struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBook) SendOTP(_ context.Context, user *domain.User, channel domain.Channel, _ auth.Purpose, code string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[user.Email+"/"+string(channel)] = code
	return nil
}

func (b *codeBook) SendAccountReady(context.Context, *domain.User) error { return nil }

func (b *codeBook) code(email string, channel domain.Channel) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[email+"/"+string(channel)]
}

type testServer struct {
	srv         *httptest.Server
	repo        *memrepo.Repository
	credentials *credential.Store
	issuer      *token.Issuer
	codes       *codeBook
	auth        *auth.Service
	admin       *domain.User
}

func newTestServer(t *testing.T, burst int) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.CookieName = testCookieName
	cfg.InitialAdmin.Email = adminEmail
	cfg.RateLimit.Rate = 0.001
	cfg.RateLimit.Burst = burst

	hasher := credential.NewHasher(2, bcrypt.MinCost)
	t.Cleanup(hasher.Close)

	otpStore := otp.NewMemoryStore(time.Minute)
	t.Cleanup(otpStore.Close)

	repo := memrepo.New()
	credentials := credential.NewStore(repo, hasher)
	issuer := token.NewIssuer(testSecret)
	codes := &codeBook{codes: make(map[string]string)}
	m := metrics.New(prometheus.NewRegistry())

	authService := auth.NewService(credentials, otp.NewEngine(otpStore, otp.DefaultTTL), issuer, codes, m, 15*time.Minute)
	t.Cleanup(authService.Wait)
	require.NoError(t, authService.EnsureAdmin(context.Background(), adminEmail, "", "admin-password", "管理员"))
	admin, err := credentials.GetUserByEmail(context.Background(), adminEmail)
	require.NoError(t, err)

	h, err := NewHandler(
		cfg,
		authService,
		permission.NewEngine(repo, repo),
		session.NewGuard(issuer, testCookieName),
		repo,
		repo,
		m,
	)
	require.NoError(t, err)
	h.RegisterRoutes()

	srv := httptest.NewServer(h.Mux)
	t.Cleanup(srv.Close)

	return &testServer{
		srv:         srv,
		repo:        repo,
		credentials: credentials,
		issuer:      issuer,
		codes:       codes,
		auth:        authService,
		admin:       admin,
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) (*http.Response, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (ts *testServer) mint(t *testing.T, u *domain.User) string {
	t.Helper()
	tok, _, err := ts.issuer.Mint(u.ID, u.Role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) user(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := ts.credentials.CreateActiveUser(context.Background(), email, "13800000000", "user-password", role, credential.Profile{FullName: email})
	require.NoError(t, err)
	return u
}

func (ts *testServer) contract(t *testing.T, clientID int64, assignee *int64) *domain.Contract {
	t.Helper()
	c := &domain.Contract{Title: "采购合同", ClientID: clientID, AssignedEmployeeID: assignee}
	require.NoError(t, ts.repo.CreateContract(context.Background(), c))
	return c
}

func decodeData(t *testing.T, res apiResponse, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(res.Data, v))
}
