package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsPresenceFallbacks(t *testing.T) {
	full := Identity{UserID: "user-1", Name: "Sarah Chen", Email: "sarah.chen@example.com", PhotoURL: "https://example.com/a.png"}
	assert.Equal(t, PresenceEntry{ID: "user-1", Name: "Sarah Chen", Avatar: "https://example.com/a.png", IsOnline: true}, full.AsPresence())

	emailOnly := Identity{UserID: "user-9", Email: "x@example.com"}
	entry := emailOnly.AsPresence()
	assert.Equal(t, "x@example.com", entry.Name)
	assert.Equal(t, AvatarURL("user-9"), entry.Avatar)

	bare := Identity{UserID: "user-0"}
	assert.Equal(t, "Unknown User", bare.AsPresence().Name)
}

func TestAvatarURLEscapesSeed(t *testing.T) {
	assert.Equal(t, "https://api.dicebear.com/7.x/avataaars/svg?seed=Emma+Davis", AvatarURL("Emma Davis"))
}

func TestHasAnyGenre(t *testing.T) {
	m := Movie{GenreIDs: []int{28, 878, 53}}

	assert.True(t, m.HasAnyGenre([]int{53}))
	assert.True(t, m.HasAnyGenre([]int{18, 28}))
	assert.False(t, m.HasAnyGenre([]int{35}))
	assert.False(t, m.HasAnyGenre(nil))
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Dune", Movie{Title: "Dune"}.DisplayTitle())
	assert.Equal(t, "Breaking Bad", Movie{Name: "Breaking Bad"}.DisplayTitle())
	assert.Equal(t, "Unknown Title", Movie{}.DisplayTitle())
}
