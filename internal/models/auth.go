package models

// LoginRequest is the payload of POST /api/auth/login.
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required,max=100"`
	Password        string `json:"password" validate:"required,max=100"`
}

// RegisterRequest is the payload of POST /api/auth/register.
// The constraints mirror the server side validation so obviously bad input
// never leaves the client.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=6,max=50,username"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// RefreshRequest is the payload of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest is the payload of POST /api/auth/logout.
type LogoutRequest struct {
	RefreshToken      string `json:"refreshToken" validate:"required"`
	LogoutAllSessions bool   `json:"logoutAllSessions"`
}

// AuthResponse is returned by login, register and refresh.
//
// ExpiresIn and RefreshExpiresIn are lifetimes in seconds relative to the
// moment the response is received.
type AuthResponse struct {
	Token            string `json:"token"`
	TokenType        string `json:"tokenType"`
	ExpiresIn        int64  `json:"expiresIn"`
	RefreshToken     string `json:"refreshToken"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
	User             *User  `json:"user"`
}
