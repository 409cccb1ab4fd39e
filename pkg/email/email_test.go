package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ana@example.com", Normalize("  ANA@Example.COM "))
}

func TestIsValid(t *testing.T) {
	valid := []string{"a@b.co", "first.last@sub.example.com", "x+tag@example.org"}
	for _, addr := range valid {
		assert.True(t, IsValid(addr), addr)
	}

	invalid := []string{"", "no-at-sign", "@example.com", "a@", "a@nodot", "a b@example.com"}
	for _, addr := range invalid {
		assert.False(t, IsValid(addr), addr)
	}
}

func TestDeriveNameFromEmail(t *testing.T) {
	first, last := DeriveNameFromEmail("jane.doe@example.com")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = DeriveNameFromEmail("solo@example.com")
	assert.Equal(t, "Solo", first)
	assert.Equal(t, "Traveler", last)

	first, last = DeriveNameFromEmail("...@example.com")
	assert.Equal(t, "Traveler", first)
	assert.Equal(t, "Traveler", last)
}
