package service

import (
	"testing"

	"wanderfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackUsername(t *testing.T) {
	tests := []struct {
		name string
		in   ProvisionInput
		want string
	}{
		{"explicit", ProvisionInput{Username: "marco", Email: "m@x.io"}, "marco"},
		{"email local part", ProvisionInput{Email: "giulia@example.com"}, "giulia"},
		{"external id suffix", ProvisionInput{ExternalID: "user_2abcdefgh12345678"}, "traveler_12345678"},
		{"short external id", ProvisionInput{ExternalID: "abc"}, "traveler_abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fallbackUsername(tt.in))
		})
	}
}

func TestResolveOrCreateUser_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	in := ProvisionInput{ExternalID: "user_abc", Email: "luca@example.com"}

	first, err := env.identity.ResolveOrCreateUser(bg, in)
	require.NoError(t, err)
	second, err := env.identity.ResolveOrCreateUser(bg, in)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	u := env.reloadUser(t, first)
	assert.Equal(t, "luca", u.Username)
	assert.Equal(t, "luca", u.DisplayName)
	assert.True(t, u.AllowMessages)

	_, err = env.identity.ResolveOrCreateUser(bg, ProvisionInput{ExternalID: "  "})
	assertCode(t, err, models.CodeValidation)
}

func TestHandleIdentityEvent_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	data := models.IdentityEventData{
		ID:             "user_lifecycle",
		Username:       "sofia",
		FirstName:      "Sofia",
		LastName:       "Rossi",
		EmailAddresses: []models.IdentityEmail{{EmailAddress: "sofia@example.com"}},
	}

	require.NoError(t, env.identity.HandleIdentityEvent(bg, models.IdentityEvent{Type: models.IdentityUserCreated, Data: data}))
	user, err := env.users.GetByExternalID(bg, data.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sofia Rossi", user.DisplayName)

	data.ImageURL = "https://img.example.com/sofia.png"
	data.Username = "sofia_travels"
	require.NoError(t, env.identity.HandleIdentityEvent(bg, models.IdentityEvent{Type: models.IdentityUserUpdated, Data: data}))
	updated := env.reloadUser(t, user.ID)
	assert.Equal(t, "sofia_travels", updated.Username)
	assert.Equal(t, data.ImageURL, updated.ProfileImageURL)

	require.NoError(t, env.identity.HandleIdentityEvent(bg, models.IdentityEvent{Type: models.IdentityUserDeleted, Data: data}))
	assert.NotNil(t, env.reloadUser(t, user.ID).DeactivatedAt)

	_, err = env.users.UserIDForSubject(bg, data.ID)
	assertCode(t, err, models.CodeNotFound)

	_, err = env.engagement.GetProfile(bg, user.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestHandleIdentityEvent_UpdateCreatesMissingUser(t *testing.T) {
	env := newTestEnv(t)
	data := models.IdentityEventData{ID: "user_late", Username: "late"}

	require.NoError(t, env.identity.HandleIdentityEvent(bg, models.IdentityEvent{Type: models.IdentityUserUpdated, Data: data}))
	_, err := env.users.GetByExternalID(bg, data.ID)
	require.NoError(t, err)
}

func TestHandleIdentityEvent_IgnoredAndInvalid(t *testing.T) {
	env := newTestEnv(t)

	assert.NoError(t, env.identity.HandleIdentityEvent(bg, models.IdentityEvent{Type: "session.created", Data: models.IdentityEventData{ID: "x"}}))
	assert.NoError(t, env.identity.HandleIdentityEvent(bg, models.IdentityEvent{Type: models.IdentityUserDeleted, Data: models.IdentityEventData{ID: "unknown"}}))

	err := env.identity.HandleIdentityEvent(bg, models.IdentityEvent{Type: models.IdentityUserCreated})
	assertCode(t, err, models.CodeValidation)
}
