package models

import "strings"

// Identity lifecycle event types delivered by the identity provider.
const (
	IdentityUserCreated = "user.created"
	IdentityUserUpdated = "user.updated"
	IdentityUserDeleted = "user.deleted"
)

// IdentityEvent is a webhook delivery from the identity provider.
type IdentityEvent struct {
	Type string            `json:"type"`
	Data IdentityEventData `json:"data"`
}

// IdentityEmail is one address attached to an identity.
type IdentityEmail struct {
	EmailAddress string `json:"email_address"`
}

// IdentityEventData is the user object carried by an identity event.
type IdentityEventData struct {
	ID             string          `json:"id"`
	Username       string          `json:"username"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	ImageURL       string          `json:"image_url"`
	EmailAddresses []IdentityEmail `json:"email_addresses"`
}

// PrimaryEmail returns the first listed address, or "".
func (d IdentityEventData) PrimaryEmail() string {
	if len(d.EmailAddresses) == 0 {
		return ""
	}
	return d.EmailAddresses[0].EmailAddress
}

// DisplayName joins first and last name, falling back to the username.
func (d IdentityEventData) DisplayName() string {
	if name := strings.TrimSpace(d.FirstName + " " + d.LastName); name != "" {
		return name
	}
	return d.Username
}
