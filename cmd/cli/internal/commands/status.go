package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/photoctl/internal/credentials"
	"github.com/wolfeidau/photoctl/internal/session"
)

// StatusCmd shows the stored session without touching the network. Loading
// the session clears expired and half-written entries from the store, the same
// as any other command would.
type StatusCmd struct{}

func (s *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	m, closeStore, err := globals.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	m.Initialize(ctx)
	snap := m.Snapshot()
	now := time.Now()

	out := globals.stdout()
	if !snap.HasRefresh() && !snap.HasAccess() {
		fmt.Fprintln(out, "Not logged in.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To log in:")
		fmt.Fprintln(out, "  photoctl login --user <username or email>")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Server:\t%s\n", globals.Server)

	if snap.User != nil {
		fmt.Fprintf(w, "User:\t%s <%s>\n", snap.User.DisplayName(), snap.User.Email)
		fmt.Fprintf(w, "Role:\t%s\n", snap.User.Role)
	}

	fmt.Fprintf(w, "Authenticated:\t%s\n", yesNo(snap.Authenticated(now)))

	if snap.HasAccess() {
		fmt.Fprintf(w, "Access token:\t%s\n", describeToken(snap.AccessToken, snap.AccessExpiresAt, now))
		if claims, err := session.PeekClaims(snap.AccessToken); err == nil && claims.Subject != "" {
			fmt.Fprintf(w, "Token subject:\t%s\n", claims.Subject)
		}
	} else {
		fmt.Fprintf(w, "Access token:\tnone, renewed on next use\n")
	}

	if snap.HasRefresh() {
		fmt.Fprintf(w, "Refresh token:\t%s\n", describeToken(snap.RefreshToken, snap.RefreshExpiresAt, now))
	}

	return w.Flush()
}

func describeToken(token string, expiresAt, now time.Time) string {
	fp := credentials.Fingerprint(token)
	if len(fp) > 12 {
		fp = fp[:12] + "..."
	}
	return fmt.Sprintf("%s expires %s (in %s)", fp, expiresAt.Local().Format(time.RFC3339), expiresAt.Sub(now).Round(time.Second))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
