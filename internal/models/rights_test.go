package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRightRoundTrip(t *testing.T) {
	for r := Right(1); r < rightEnd; r <<= 1 {
		parsed, err := ParseRight(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
}

func TestParseRight_Unknown(t *testing.T) {
	_, err := ParseRight("BENCHMARK_WRITE")
	assert.Error(t, err)
}

func TestRightSet_UnionAndHas(t *testing.T) {
	readers := NewRightSet(RightBenchmarkRead, RightArtifactRead)
	writers := NewRightSet(RightBenchmarkCreate)

	combined := readers.Union(writers)
	assert.True(t, combined.Has(RightBenchmarkRead))
	assert.True(t, combined.Has(RightBenchmarkCreate))
	assert.False(t, combined.Has(RightBenchmarkDelete))
	assert.Equal(t, 3, combined.Len())
}

func TestAllRights_CoversEnumeration(t *testing.T) {
	assert.Equal(t, 20, AllRights.Len())
	assert.Len(t, AllRights.Names(), 20)
}

func TestParseRights_List(t *testing.T) {
	set, err := ParseRights([]string{"BENCHMARK_READ", "EPISODE_CREATE"})
	require.NoError(t, err)
	assert.True(t, set.Has(RightBenchmarkRead))
	assert.True(t, set.Has(RightEpisodeCreate))
	assert.Equal(t, 2, set.Len())

	_, err = ParseRights([]string{"BENCHMARK_READ", "bogus"})
	assert.Error(t, err)
}

func TestUserRoleRightSet_SkipsUnknown(t *testing.T) {
	role := UserRole{Role: "tester", Rights: []string{"BENCHMARK_READ", "bogus"}}
	set := role.RightSet()
	assert.True(t, set.Has(RightBenchmarkRead))
	assert.Equal(t, 1, set.Len())
}
