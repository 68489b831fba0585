package session

import (
	"context"

	"github.com/wolfeidau/photoctl/internal/models"
)

// Gateway is the remote side of the session: the four auth operations. Any
// error is treated as a failure of that call, whatever its cause.
//
// *authapi.Client satisfies it.
type Gateway interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string, allSessions bool) error
}
