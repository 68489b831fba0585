package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/photoctl/internal/session"
)

// RefreshCmd renews the access token if it is close to expiry, or always with
// --force.
type RefreshCmd struct {
	Force bool `help:"Renew even if the access token is still fresh"`
}

func (r *RefreshCmd) Run(ctx context.Context, globals *Globals) error {
	m, closeStore, err := globals.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	outcome := m.EnsureSession(ctx, r.Force)

	switch outcome {
	case session.OutcomeNoSession:
		return fmt.Errorf("nothing to refresh: %w", session.ErrNotAuthenticated)
	case session.OutcomeExpired:
		return session.ErrSessionExpired
	case session.OutcomeInvalid:
		return session.ErrSessionInvalid
	}

	fmt.Fprintf(globals.stdout(), "Session %s, access token valid until %s\n",
		outcome, m.Snapshot().AccessExpiresAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}
