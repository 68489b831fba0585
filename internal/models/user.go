package models

import "strings"

// User is the profile record returned by the photo service with every
// successful authentication. It is cached locally next to the tokens.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role"`
}

// DisplayName returns the name shown in greetings.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.Username); name != "" {
		return name
	}
	return u.Email
}

// Clone returns a copy that can be handed to callers without sharing state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
