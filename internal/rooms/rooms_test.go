package rooms

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uidraft/backend/internal/models"
)

func TestGenerateAccessCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateAccessCode(accessCodeLength)
		require.NoError(t, err)
		assert.Len(t, code, accessCodeLength)
		for _, c := range code {
			assert.Contains(t, accessCodeAlphabet, string(c))
		}
		seen[code] = true
	}
	// 100 draws from 36^6 should not collide into a handful of values.
	assert.Greater(t, len(seen), 90)
}

func TestRoomHasAccess(t *testing.T) {
	owner := uuid.New()
	collab := uuid.New()
	stranger := uuid.New()

	room := &models.Room{
		OwnerID:       owner,
		Collaborators: []uuid.UUID{collab},
	}

	assert.True(t, room.HasAccess(owner))
	assert.True(t, room.HasAccess(collab))
	assert.False(t, room.HasAccess(stranger))
}

func TestCollaboratorArray(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	arr := collaboratorArray([]uuid.UUID{a, b})
	require.Len(t, arr, 2)
	assert.Equal(t, a.String(), arr[0])
	assert.Equal(t, b.String(), arr[1])

	assert.Empty(t, collaboratorArray(nil))
}
