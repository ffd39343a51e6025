package vector

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointID_Deterministic(t *testing.T) {
	a := pointID("internal/server/health.go#3")
	b := pointID("internal/server/health.go#3")
	require.NotNil(t, a)
	assert.Equal(t, a.GetUuid(), b.GetUuid(), "same logical key must map to the same point id")
}

func TestPointID_DistinctKeys(t *testing.T) {
	seen := make(map[string]string)
	keys := []string{
		"a.go#0",
		"a.go#1",
		"b.go#0",
		"task_42",
		"task_421",
	}
	for _, k := range keys {
		id := pointID(k).GetUuid()
		prev, dup := seen[id]
		require.False(t, dup, "keys %q and %q collided on %s", k, prev, id)
		seen[id] = k
	}
}

func TestPointID_ValidUUID(t *testing.T) {
	id := pointID("some/path.py#12").GetUuid()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version(), "point ids are name-based UUIDv5")
}
