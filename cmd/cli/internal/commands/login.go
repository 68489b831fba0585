package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/photoctl/internal/models"
)

type LoginCmd struct {
	User          string `help:"Username or email" required:""`
	PasswordStdin bool   `help:"Read the password from stdin" name:"password-stdin"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	password, err := globals.readPassword(l.PasswordStdin, "Password: ")
	if err != nil {
		return err
	}

	m, closeStore, err := globals.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	user, err := m.Login(ctx, models.LoginRequest{UsernameOrEmail: l.User, Password: password})
	if err != nil {
		return explain("login", err)
	}

	fmt.Fprintf(globals.stdout(), "Logged in as %s\n", user.DisplayName())
	return nil
}

type RegisterCmd struct {
	Username      string `help:"Username, 6-50 letters, digits or underscores" required:""`
	Email         string `help:"Email address" required:""`
	PasswordStdin bool   `help:"Read the password from stdin" name:"password-stdin"`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	password, err := globals.readPassword(r.PasswordStdin, "Choose a password: ")
	if err != nil {
		return err
	}

	m, closeStore, err := globals.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	user, err := m.Register(ctx, models.RegisterRequest{
		Username: r.Username,
		Email:    r.Email,
		Password: password,
	})
	if err != nil {
		return explain("registration", err)
	}

	fmt.Fprintf(globals.stdout(), "Registered and logged in as %s\n", user.DisplayName())
	return nil
}
