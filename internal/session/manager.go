// Package session keeps the client side of a photo service login: it hydrates
// tokens from a credentials.Store, renews the access token before it expires
// and tears everything down when renewal is no longer possible.
package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/photoctl/internal/credentials"
	"github.com/wolfeidau/photoctl/internal/models"
	"github.com/wolfeidau/photoctl/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/wolfeidau/photoctl/internal/session"

// DefaultRenewalMargin is how long before access token expiry a renewal is
// triggered.
const DefaultRenewalMargin = 30 * time.Second

// Teardown reasons, recorded on the teardown metric.
const (
	reasonLogout  = "logout"
	reasonExpired = "expired"
	reasonInvalid = "invalid"
)

// Outcome describes what EnsureSession did.
type Outcome int

const (
	// OutcomeNoSession means there was no refresh token to work with.
	OutcomeNoSession Outcome = iota
	// OutcomeValid means the access token is outside the renewal margin.
	OutcomeValid
	// OutcomeInFlight means a renewal was needed but another caller's renewal
	// was already running. Nothing was done.
	OutcomeInFlight
	// OutcomeRenewed means a new token pair was obtained and stored.
	OutcomeRenewed
	// OutcomeExpired means the refresh token had expired and the session was
	// torn down.
	OutcomeExpired
	// OutcomeInvalid means the renewal failed and the session was torn down.
	OutcomeInvalid
	// OutcomeSuperseded means the session was logged out or replaced while
	// the renewal was in flight, so its result was dropped.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoSession:
		return "no-session"
	case OutcomeValid:
		return "valid"
	case OutcomeInFlight:
		return "in-flight"
	case OutcomeRenewed:
		return "renewed"
	case OutcomeExpired:
		return "expired"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets where user facing messages go. Defaults to NopNotifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithRenewalMargin overrides DefaultRenewalMargin.
func WithRenewalMargin(d time.Duration) Option {
	return func(m *Manager) {
		m.margin = d
	}
}

// LogoutOptions controls Logout.
type LogoutOptions struct {
	// AllSessions asks the server to revoke every session of the user.
	AllSessions bool
	// Silent suppresses the "Logged out" notice.
	Silent bool
	// SkipServerNotify tears down locally without calling the server.
	SkipServerNotify bool
}

// Manager owns the session. Create one per process with New and share it;
// all methods are safe for concurrent use.
type Manager struct {
	store    *credentials.Store
	gateway  Gateway
	notifier Notifier
	now      func() time.Time
	margin   time.Duration
	tracer   trace.Tracer
	metrics  *telemetry.Metrics

	mu    sync.Mutex
	state Session
	// epoch changes whenever the session is replaced or torn down, so a
	// renewal that finishes afterwards can tell its result is stale.
	epoch uint64

	noticeMu sync.Mutex
	pending  []notice
}

// New creates a Manager. Nothing is read from the store until Initialize or
// the first EnsureSession.
func New(store *credentials.Store, gateway Gateway, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		gateway:  gateway,
		notifier: NopNotifier{},
		now:      time.Now,
		margin:   DefaultRenewalMargin,
		tracer:   otel.Tracer(tracerName),
		metrics:  telemetry.GetMetrics(),
	}

	for _, opt := range opts {
		opt(m)
	}

	store.OnCorruption(func(err error) {
		m.metrics.StorageCorruptionTotal.Add(context.Background(), 1)
		var corrupt *credentials.CorruptionError
		if errors.As(err, &corrupt) && corrupt.Key == credentials.KeyUser {
			m.queue(levelWarning, MsgProfileCorrupt)
		}
	})

	return m
}

// Initialize hydrates the session from storage. Only the first call does
// anything, later calls return immediately. No network calls are made.
func (m *Manager) Initialize(ctx context.Context) {
	defer m.flush()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.initializeLocked(ctx)
}

func (m *Manager) initializeLocked(ctx context.Context) {
	if m.state.Initialized {
		return
	}
	defer func() { m.state.Initialized = true }()

	now := m.now()

	refresh, ok, err := m.store.ReadRefresh(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("failed to read refresh token, starting without it")
	case ok && refresh.ExpiresAt.After(now):
		m.state.RefreshToken = refresh.Token
		m.state.RefreshExpiresAt = refresh.ExpiresAt
	default:
		m.discard(ctx, "refresh", m.store.ClearRefresh)
	}

	user, hasUser := m.store.ReadUser(ctx)

	access, ok, err := m.store.ReadAccess(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("failed to read access token, starting without it")
	case ok && hasUser && access.ExpiresAt.After(now):
		m.state.AccessToken = access.Token
		m.state.AccessExpiresAt = access.ExpiresAt
		m.state.User = user
	default:
		m.discard(ctx, "access", m.store.ClearAccess)
	}

	// a profile with no token left to use it is stale too
	if !hasUser || (!m.state.HasAccess() && !m.state.HasRefresh()) {
		m.discard(ctx, "profile", m.store.ClearProfile)
	}

	log.Debug().
		Bool("authenticated", m.state.Authenticated(now)).
		Bool("renewable", m.state.HasRefresh()).
		Msg("session hydrated")
}

func (m *Manager) discard(ctx context.Context, what string, clear func(context.Context) error) {
	if err := clear(ctx); err != nil {
		log.Warn().Err(err).Str("entries", what).Msg("failed to discard stale credentials")
	}
}

// Login authenticates with the gateway and stores the new session. Gateway
// errors are returned unchanged and leave the current session untouched.
func (m *Manager) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	return m.authenticate(ctx, "login", func(ctx context.Context) (*models.AuthResponse, error) {
		return m.gateway.Login(ctx, req)
	}, welcomeBack)
}

// Register creates an account and stores its first session, see Login.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return m.authenticate(ctx, "register", func(ctx context.Context) (*models.AuthResponse, error) {
		return m.gateway.Register(ctx, req)
	}, registered)
}

func (m *Manager) authenticate(
	ctx context.Context,
	op string,
	call func(context.Context) (*models.AuthResponse, error),
	greeting func(string) string,
) (user *models.User, err error) {
	ctx, span := m.tracer.Start(ctx, "session."+op)
	opAttr := metric.WithAttributes(attribute.String("op", op))
	defer func() {
		if err != nil {
			m.metrics.AuthenticationErrorsTotal.Add(ctx, 1, opAttr)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	resp, err := call(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := newRecord(resp, m.now(), nil)
	if err != nil {
		return nil, err
	}

	if err := m.establish(ctx, rec); err != nil {
		return nil, err
	}

	m.metrics.AuthenticationsTotal.Add(ctx, 1, opAttr)
	log.Info().
		Str("op", op).
		Str("user", rec.User.Username).
		Str("access", credentials.Fingerprint(rec.Access.Token)).
		Time("accessExpiresAt", rec.Access.ExpiresAt).
		Time("refreshExpiresAt", rec.Refresh.ExpiresAt).
		Msg("session established")

	m.notifier.Success(greeting(rec.User.DisplayName()))

	return rec.User.Clone(), nil
}

// establish persists rec and, only if that worked, makes it the session.
func (m *Manager) establish(ctx context.Context, rec credentials.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Persist(ctx, rec); err != nil {
		return err
	}

	m.epoch++
	m.state.apply(rec)
	m.state.Initialized = true

	return nil
}

// EnsureSession makes sure the access token is usable for at least the
// renewal margin, renewing it with the refresh token when needed or when force
// is set. It never fails: when renewal is impossible the session is torn down
// and the outcome says why.
//
// Only one renewal runs at a time. A caller arriving while one is in flight
// gets OutcomeInFlight straight away and does not wait for it.
func (m *Manager) EnsureSession(ctx context.Context, force bool) Outcome {
	defer m.flush()
	m.mu.Lock()

	m.initializeLocked(ctx)

	now := m.now()

	if !m.state.HasRefresh() {
		m.mu.Unlock()
		return OutcomeNoSession
	}

	if !m.state.RefreshExpiresAt.After(now) {
		log.Info().Time("refreshExpiresAt", m.state.RefreshExpiresAt).Msg("refresh token expired")
		_ = m.teardownLocked(ctx, reasonExpired)
		m.mu.Unlock()
		m.queue(levelWarning, MsgSessionExpired)
		return OutcomeExpired
	}

	needsRefresh := force ||
		!m.state.HasAccess() ||
		m.state.AccessExpiresAt.Sub(now) < m.margin

	if !needsRefresh {
		m.mu.Unlock()
		return OutcomeValid
	}

	if m.state.Refreshing {
		m.mu.Unlock()
		m.metrics.RenewalsSkippedTotal.Add(ctx, 1)
		log.Debug().Msg("renewal already in flight")
		return OutcomeInFlight
	}

	m.state.Refreshing = true
	epoch := m.epoch
	refreshToken := m.state.RefreshToken
	user := m.state.User
	m.mu.Unlock()

	return m.renew(ctx, epoch, refreshToken, user)
}

func (m *Manager) renew(ctx context.Context, epoch uint64, refreshToken string, user *models.User) Outcome {
	defer func() {
		m.mu.Lock()
		m.state.Refreshing = false
		m.mu.Unlock()
	}()

	ctx, span := m.tracer.Start(ctx, "session.renew")
	defer span.End()

	started := time.Now()
	resp, err := m.gateway.Refresh(ctx, refreshToken)
	m.metrics.RenewalDuration.Record(ctx, float64(time.Since(started).Microseconds())/1000)

	var rec credentials.Record
	if err == nil {
		if user == nil && resp != nil && resp.User == nil {
			// hydrated from a refresh token alone, the profile is still cached
			user, _ = m.store.ReadUser(ctx)
		}
		rec, err = newRecord(resp, m.now(), user)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		log.Info().Msg("session changed during renewal, dropping the result")
		span.SetAttributes(attribute.String("outcome", OutcomeSuperseded.String()))
		return OutcomeSuperseded
	}

	if err == nil {
		err = m.store.Persist(ctx, rec)
	}

	if err != nil {
		log.Warn().Err(err).Str("refresh", credentials.Fingerprint(refreshToken)).Msg("session renewal failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.RenewalFailuresTotal.Add(ctx, 1)
		_ = m.teardownLocked(ctx, reasonInvalid)
		m.queue(levelError, MsgSessionInvalid)
		return OutcomeInvalid
	}

	m.epoch++
	m.state.apply(rec)
	m.metrics.RenewalsTotal.Add(ctx, 1)
	span.SetAttributes(attribute.String("outcome", OutcomeRenewed.String()))

	log.Debug().
		Str("access", credentials.Fingerprint(rec.Access.Token)).
		Time("accessExpiresAt", rec.Access.ExpiresAt).
		Msg("session renewed")

	return OutcomeRenewed
}

// Logout tells the server, best effort, then always clears the session and
// all stored credentials. The error only reports storage entries that could
// not be removed; the in-memory session is empty either way.
func (m *Manager) Logout(ctx context.Context, opts LogoutOptions) error {
	defer m.flush()

	m.mu.Lock()
	refreshToken := m.state.RefreshToken
	m.mu.Unlock()

	if refreshToken == "" {
		stored, err := m.store.RefreshToken(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read stored refresh token")
		}
		refreshToken = stored
	}

	if !opts.SkipServerNotify && refreshToken != "" {
		if err := m.gateway.Logout(ctx, refreshToken, opts.AllSessions); err != nil {
			log.Warn().Err(err).Msg("failed to notify server about logout")
			m.metrics.LogoutNotifyFailuresTotal.Add(ctx, 1)
			m.queue(levelWarning, MsgLogoutNotifyFailed)
		}
	}

	m.mu.Lock()
	err := m.teardownLocked(ctx, reasonLogout)
	m.mu.Unlock()

	if !opts.Silent {
		m.queue(levelSuccess, MsgLoggedOut)
	}

	return err
}

// teardownLocked empties the session and clears every stored entry.
func (m *Manager) teardownLocked(ctx context.Context, reason string) error {
	m.epoch++
	m.state.reset()

	m.metrics.TeardownsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))

	if err := m.store.Clear(ctx); err != nil {
		log.Error().Err(err).Str("reason", reason).Msg("failed to clear stored credentials")
		return err
	}

	log.Debug().Str("reason", reason).Msg("session torn down")
	return nil
}

// IsAuthenticated reports whether the access token is present and unexpired
// right now. It has no side effects.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.Authenticated(m.now())
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.clone()
}

// User returns the current profile or nil.
func (m *Manager) User() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.User.Clone()
}

// newRecord turns a gateway response received at now into a session record.
// fallback is used when the response carries no profile.
func newRecord(resp *models.AuthResponse, now time.Time, fallback *models.User) (credentials.Record, error) {
	switch {
	case resp == nil:
		return credentials.Record{}, &ProtocolError{Field: "data", Reason: "is missing"}
	case resp.RefreshToken == "":
		return credentials.Record{}, &ProtocolError{Field: "refreshToken", Reason: "is missing"}
	case resp.RefreshExpiresIn <= 0:
		return credentials.Record{}, &ProtocolError{Field: "refreshExpiresIn", Reason: "must be positive"}
	case resp.Token == "":
		return credentials.Record{}, &ProtocolError{Field: "token", Reason: "is missing"}
	case resp.RefreshExpiresIn <= resp.ExpiresIn:
		return credentials.Record{}, &ProtocolError{Field: "refreshExpiresIn", Reason: "must exceed expiresIn"}
	}

	user := resp.User
	if user == nil {
		user = fallback
	}
	if user == nil {
		return credentials.Record{}, &ProtocolError{Field: "user", Reason: "is missing"}
	}

	accessExpiresAt, ok := expiresAfter(now, resp.ExpiresIn)
	if !ok {
		return credentials.Record{}, &ProtocolError{Field: "expiresIn", Reason: "is out of range"}
	}
	refreshExpiresAt, ok := expiresAfter(now, resp.RefreshExpiresIn)
	if !ok {
		return credentials.Record{}, &ProtocolError{Field: "refreshExpiresIn", Reason: "is out of range"}
	}

	return credentials.Record{
		Access: credentials.Pair{
			Token:     resp.Token,
			ExpiresAt: accessExpiresAt,
		},
		Refresh: credentials.Pair{
			Token:     resp.RefreshToken,
			ExpiresAt: refreshExpiresAt,
		},
		User: user.Clone(),
	}, nil
}

// maxDurationSeconds is the longest lifetime a time.Duration can hold.
const maxDurationSeconds = int64(math.MaxInt64 / time.Second)

// expiresAfter returns now plus seconds. Lifetimes beyond what a
// time.Duration holds are added in epoch milliseconds, the unit the store
// persists; ok is false when even that would overflow.
func expiresAfter(now time.Time, seconds int64) (time.Time, bool) {
	if seconds >= -maxDurationSeconds && seconds <= maxDurationSeconds {
		return now.Add(time.Duration(seconds) * time.Second), true
	}
	if seconds < 0 {
		return time.Time{}, false
	}

	nowMillis := now.UnixMilli()
	if nowMillis < 0 || seconds > (math.MaxInt64-nowMillis)/1000 {
		return time.Time{}, false
	}
	return time.UnixMilli(nowMillis + seconds*1000).In(now.Location()), true
}
