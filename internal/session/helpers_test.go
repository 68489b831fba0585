package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wolfeidau/photoctl/internal/credentials"
	"github.com/wolfeidau/photoctl/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeGateway struct {
	mu           sync.Mutex
	loginResp    *models.AuthResponse
	loginErr     error
	registerResp *models.AuthResponse
	refreshResps []*models.AuthResponse
	refreshErr   error
	logoutErr    error

	refreshTokens []string
	logoutTokens  []string

	// when refreshGate is set Refresh signals refreshStarted and then blocks
	// until the gate is closed
	refreshGate    chan struct{}
	refreshStarted chan struct{}

	loginCalls   atomic.Int32
	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
}

func (g *fakeGateway) Login(_ context.Context, _ models.LoginRequest) (*models.AuthResponse, error) {
	g.loginCalls.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loginResp, g.loginErr
}

func (g *fakeGateway) Register(_ context.Context, _ models.RegisterRequest) (*models.AuthResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registerResp, nil
}

func (g *fakeGateway) Refresh(_ context.Context, refreshToken string) (*models.AuthResponse, error) {
	g.refreshCalls.Add(1)

	g.mu.Lock()
	g.refreshTokens = append(g.refreshTokens, refreshToken)
	gate, started := g.refreshGate, g.refreshStarted
	g.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refreshErr != nil {
		return nil, g.refreshErr
	}
	if len(g.refreshResps) == 0 {
		return nil, errors.New("no refresh response configured")
	}
	resp := g.refreshResps[0]
	g.refreshResps = g.refreshResps[1:]
	return resp, nil
}

func (g *fakeGateway) Logout(_ context.Context, refreshToken string, _ bool) error {
	g.logoutCalls.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logoutTokens = append(g.logoutTokens, refreshToken)
	return g.logoutErr
}

func (g *fakeGateway) gateRefresh() (gate chan struct{}, started chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshGate = make(chan struct{})
	g.refreshStarted = make(chan struct{}, 1)
	return g.refreshGate, g.refreshStarted
}

type recordingNotifier struct {
	mu       sync.Mutex
	success  []string
	warnings []string
	errors   []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, msg)
}

func (n *recordingNotifier) Warning(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) Successes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.success...)
}

func (n *recordingNotifier) Warnings() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.warnings...)
}

func (n *recordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

// brokenBackend fails every Set.
type brokenBackend struct {
	*credentials.MemoryBackend
}

func (b brokenBackend) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

type harness struct {
	manager  *Manager
	gateway  *fakeGateway
	clock    *fakeClock
	notifier *recordingNotifier
	backend  *credentials.MemoryBackend
	store    *credentials.Store
}

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessAt(t, baseTime)
}

func newHarnessAt(t *testing.T, now time.Time) *harness {
	t.Helper()

	h := &harness{
		gateway:  &fakeGateway{},
		clock:    newFakeClock(now),
		notifier: &recordingNotifier{},
		backend:  credentials.NewMemoryBackend(),
	}
	h.store = credentials.NewStore(h.backend)
	h.manager = New(h.store, h.gateway, WithClock(h.clock.Now), WithNotifier(h.notifier))
	return h
}

// restart simulates a new process sharing the same storage.
func (h *harness) restart() *Manager {
	h.store = credentials.NewStore(h.backend)
	h.manager = New(h.store, h.gateway, WithClock(h.clock.Now), WithNotifier(h.notifier))
	return h.manager
}

func (h *harness) stored(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := h.backend.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return v, ok
}

// seed persists a session directly, bypassing the Manager.
func (h *harness) seed(t *testing.T, access, refresh time.Duration) {
	t.Helper()
	now := h.clock.Now()
	err := h.store.Persist(context.Background(), credentials.Record{
		Access:  credentials.Pair{Token: "seed-access", ExpiresAt: now.Add(access)},
		Refresh: credentials.Pair{Token: "seed-refresh", ExpiresAt: now.Add(refresh)},
		User:    demoUser(),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func demoUser() *models.User {
	return &models.User{ID: 1, Username: "demo-user", Email: "demo@example.com", Role: "ROLE_USER"}
}

func authResponse(token string, expiresIn int64, refreshToken string, refreshExpiresIn int64) *models.AuthResponse {
	return &models.AuthResponse{
		Token:            token,
		TokenType:        "Bearer",
		ExpiresIn:        expiresIn,
		RefreshToken:     refreshToken,
		RefreshExpiresIn: refreshExpiresIn,
		User:             demoUser(),
	}
}

var loginReq = models.LoginRequest{UsernameOrEmail: "demo-user", Password: "secret1"}
