package user

import "time"

// User is the identity returned by the sign-in provider.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Preferences holds client-side toggles persisted with the profile.
type Preferences struct {
	VoiceEnabled *bool  `json:"voiceEnabled,omitempty"`
	AutoSpeak    *bool  `json:"autoSpeak,omitempty"`
	Theme        string `json:"theme,omitempty"`
}

// Profile is the stored record for a signed-in user, keyed by UID.
type Profile struct {
	UID         string      `json:"uid"`
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName,omitempty"`
	PhotoURL    string      `json:"photoURL,omitempty"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"createdAt"`
	LastActive  time.Time   `json:"lastActive"`
}

// ProfileFor seeds a new profile from a provider identity.
func ProfileFor(u User, now time.Time) Profile {
	return Profile{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		CreatedAt:   now,
		LastActive:  now,
	}
}
