package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/photoctl/internal/session"
)

type LogoutCmd struct {
	All   bool `help:"Revoke every session of this user, not just this one"`
	Local bool `help:"Only forget the local session, do not tell the server"`
	Quiet bool `help:"Do not print a confirmation"`
}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	m, closeStore, err := globals.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	err = m.Logout(ctx, session.LogoutOptions{
		AllSessions:      l.All,
		Silent:           l.Quiet,
		SkipServerNotify: l.Local,
	})
	if err != nil {
		return fmt.Errorf("logged out, but some stored credentials could not be removed: %w", err)
	}

	return nil
}
