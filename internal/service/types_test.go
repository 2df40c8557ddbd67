package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityType_IsValid(t *testing.T) {
	t.Parallel()

	for _, et := range EntityTypes {
		assert.True(t, et.IsValid(), et)
	}
	assert.False(t, EntityType("").IsValid())
	assert.False(t, EntityType("Agent").IsValid())
}

func TestEntity_ToSummary(t *testing.T) {
	t.Parallel()

	e := Entity{UID: "tool-1", Type: EntityTypeTool, Name: "Scraper", Version: "1.0.0", QualityScore: 82.3, Providers: []string{"openai"}}
	s := e.ToSummary()

	assert.Equal(t, "tool-1", s.UID)
	assert.InDelta(t, 82.3, s.Score, 0.0001)
	assert.Equal(t, []string{"openai"}, s.Providers)

	// absent lists serialize as empty arrays
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"capabilities":[]`)
	assert.Contains(t, string(data), `"frameworks":[]`)
}

func TestIdentityHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://api.dicebear.com/7.x/bottts/svg?seed=Unit734", AvatarURL("Unit734"))
	assert.Equal(t, "https://api.dicebear.com/7.x/bottts/svg?seed=a+b%26c", AvatarURL("a b&c"))
	assert.True(t, IsGuestID("guest-deadbeef"))
	assert.False(t, IsGuestID("Guest-deadbeef"))
	assert.Equal(t, Acknowledgement{Message: "Logged out successfully", Status: "ok"}, LogoutAcknowledgement())
}
