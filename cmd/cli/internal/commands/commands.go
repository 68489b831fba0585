package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/photoctl/internal/authapi"
	"github.com/wolfeidau/photoctl/internal/credentials"
	"github.com/wolfeidau/photoctl/internal/session"
	"golang.org/x/term"
)

// Storage backends selectable with --storage.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

type Globals struct {
	Debug    bool
	Version  string
	Server   string
	Storage  string
	StateDir string
	Timeout  time.Duration

	// Stdin, Stdout and Stderr default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (g *Globals) stdin() io.Reader {
	if g.Stdin == nil {
		return os.Stdin
	}
	return g.Stdin
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Globals) stderr() io.Writer {
	if g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

// openSession wires the credential store, the auth client and the session
// manager from the global flags. closeFn must be called when done.
func (g *Globals) openSession(ctx context.Context) (m *session.Manager, closeFn func() error, err error) {
	backend, closeFn, err := g.openBackend(ctx)
	if err != nil {
		return nil, nil, err
	}

	gateway, err := authapi.New(authapi.Config{ServerURL: g.Server, Timeout: g.Timeout})
	if err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	m = session.New(
		credentials.NewStore(backend),
		gateway,
		session.WithNotifier(&consoleNotifier{out: g.stderr()}),
	)

	return m, closeFn, nil
}

func (g *Globals) openBackend(ctx context.Context) (credentials.Backend, func() error, error) {
	noop := func() error { return nil }

	switch g.Storage {
	case "", StorageFile:
		dir := ""
		if g.StateDir != "" {
			dir = filepath.Join(g.StateDir, "session")
		}
		backend, err := credentials.NewFileBackend(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize credential store: %w", err)
		}
		return backend, noop, nil

	case StorageSQLite:
		dir := g.StateDir
		if dir == "" {
			root, err := credentials.DefaultDir()
			if err != nil {
				return nil, nil, err
			}
			dir = root
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		backend, err := credentials.OpenSQLite(ctx, filepath.Join(dir, "session.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize credential store: %w", err)
		}
		return backend, backend.Close, nil

	case StorageMemory:
		log.Debug().Msg("using in-memory credential storage, nothing survives this run")
		return credentials.NewMemoryBackend(), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage %q", g.Storage)
	}
}

// readPassword reads a line from stdin when asked to, or when stdin is not a
// terminal, and otherwise prompts without echo.
func (g *Globals) readPassword(fromStdin bool, prompt string) (string, error) {
	in := g.stdin()
	f, isFile := in.(*os.File)

	if fromStdin || !isFile || !term.IsTerminal(int(f.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("no password given on stdin")
		}
		return password, nil
	}

	fmt.Fprint(g.stderr(), prompt)
	password, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(g.stderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(password), nil
}

// consoleNotifier prints session notices for a human on stderr, leaving
// stdout for command output.
type consoleNotifier struct {
	out io.Writer
}

func (c *consoleNotifier) Success(msg string) { fmt.Fprintln(c.out, msg) }
func (c *consoleNotifier) Warning(msg string) { fmt.Fprintln(c.out, "warning: "+msg) }
func (c *consoleNotifier) Error(msg string)   { fmt.Fprintln(c.out, "error: "+msg) }

// explain adds a hint to the errors users can act on.
func explain(op string, err error) error {
	switch {
	case errors.Is(err, authapi.ErrUnauthorized):
		return fmt.Errorf("%s failed, check your username and password: %w", op, err)
	case errors.Is(err, authapi.ErrUnavailable):
		return fmt.Errorf("%s failed, the server could not be reached: %w", op, err)
	case errors.Is(err, session.ErrProtocol):
		return fmt.Errorf("%s failed, the server response is not supported by this client: %w", op, err)
	default:
		return fmt.Errorf("%s failed: %w", op, err)
	}
}
