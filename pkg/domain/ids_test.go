package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
)

func TestParseTripID(t *testing.T) {
	valid := NewTripID()

	parsed, err := ParseTripID(valid.String())
	require.NoError(t, err)
	assert.Equal(t, valid, parsed)
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":    "",
		"garbage":  "not-a-uuid",
		"nil uuid": "00000000-0000-0000-0000-000000000000",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseUserID(raw)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestIsZero(t *testing.T) {
	assert.True(t, UserID{}.IsZero())
	assert.False(t, NewUserID().IsZero())
	assert.True(t, TripID{}.IsZero())
	assert.True(t, SessionID{}.IsZero())
}
