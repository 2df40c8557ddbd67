package service

import (
	"net/url"
	"strings"
)

const (
	// GuestIDPrefix marks synthetic guest identifiers
	GuestIDPrefix = "guest-"
	// GuestName is the display name of every guest
	GuestName = "Guest User"
	// GuestRole is the role label of every guest
	GuestRole = "Preview Mode"
	// GuestAvatarSeed is the avatar seed shared by all guests
	GuestAvatarSeed = "Guest"
	// DefaultAgentRole is assigned to self-registered agents
	DefaultAgentRole = "AI Agent"
	// TokenTypeBearer is the only token type issued
	TokenTypeBearer = "bearer"

	avatarBaseURL = "https://api.dicebear.com/7.x/bottts/svg"
)

// AvatarURL derives a deterministic avatar URL from a seed
func AvatarURL(seed string) string {
	return avatarBaseURL + "?seed=" + url.QueryEscape(seed)
}

// IsGuestID reports whether id belongs to a synthetic guest identity
func IsGuestID(id string) bool {
	return strings.HasPrefix(id, GuestIDPrefix)
}

// LogoutAcknowledgement is the fixed response to a logout request
func LogoutAcknowledgement() Acknowledgement {
	return Acknowledgement{Message: "Logged out successfully", Status: "ok"}
}
