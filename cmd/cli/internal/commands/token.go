package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/photoctl/internal/session"
)

// TokenCmd prints a usable access token for scripts, e.g.
//
//	curl -H "Authorization: Bearer $(photoctl token)" ...
type TokenCmd struct{}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	m, closeStore, err := globals.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	token, err := m.Token(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return fmt.Errorf("%w, run photoctl login first", err)
		}
		return err
	}

	fmt.Fprintln(globals.stdout(), token)
	return nil
}

type VersionCmd struct{}

func (v *VersionCmd) Run(globals *Globals) error {
	fmt.Fprintf(globals.stdout(), "photoctl %s\n", globals.Version)
	return nil
}
