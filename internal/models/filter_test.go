package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter_Empty(t *testing.T) {
	for _, body := range []string{"", "null", "{}"} {
		f, err := ParseFilter([]byte(body))
		require.NoError(t, err, "body %q", body)
		assert.Nil(t, f)
	}
}

func TestParseFilter_Leaf(t *testing.T) {
	f, err := ParseFilter([]byte(`{"type":"EQ","key":"hash","value":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, FilterEQ, f.Type)
	assert.Equal(t, "hash", f.Key)
	assert.Equal(t, "abc", f.Value)
}

func TestParseFilter_Nested(t *testing.T) {
	body := `{
		"type": "AND",
		"filters": [
			{"type": "EQ", "key": "metadata.difficulty", "value": "easy"},
			{"type": "OR", "filters": [
				{"type": "GEQ", "key": "n_tuples", "value": 10},
				{"type": "LEQ", "key": "n_tuples", "value": 2}
			]}
		]
	}`
	f, err := ParseFilter([]byte(body))
	require.NoError(t, err)
	require.Len(t, f.Filters, 2)
	assert.Equal(t, FilterOR, f.Filters[1].Type)
	require.Len(t, f.Filters[1].Filters, 2)
}

func TestParseFilter_Invalid(t *testing.T) {
	cases := []string{
		`{"type":"EQ","value":"missing key"}`,
		`{"type":"AND","filters":[]}`,
		`{"type":"BETWEEN","key":"x","value":1}`,
		`{"key":"x","value":1}`,
	}
	for _, body := range cases {
		_, err := ParseFilter([]byte(body))
		assert.Error(t, err, "body %s", body)
	}
}

func TestEpisodeListQuery_FilterExtraction(t *testing.T) {
	var q EpisodeListQuery
	require.NoError(t, json.Unmarshal(
		[]byte(`{"type":"EQ","key":"benchmark_id","value":"b1","include_tuples":true}`), &q))

	f, err := q.Filter()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, FilterEQ, f.Type)
	assert.True(t, q.IncludeTuples)

	var bare EpisodeListQuery
	require.NoError(t, json.Unmarshal([]byte(`{"include_tuples":false}`), &bare))
	f, err = bare.Filter()
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestNewEpisodeItem_DerivedFields(t *testing.T) {
	query := EpisodeQuery{
		BenchmarkID: "b1",
		Metadata:    map[string]any{"agent": "test_agent"},
		Tuples: []RLTuple{
			{State: map[string]any{"position": 0.0}, Action: 1, Reward: 0.0},
			{State: map[string]any{"position": 0.1}, Action: 1, Reward: 0.1, Terminal: true},
		},
	}

	episode := NewEpisodeItem("e1", "alice", time.Now().UTC(), query)
	assert.Equal(t, 2, episode.NTuples)
	assert.True(t, episode.Terminated)
	assert.False(t, episode.Timeout)
	assert.Equal(t, []string{"alice"}, episode.PublishedIn)
	assert.Equal(t, "b1", episode.BenchmarkID)

	// Timeout flag comes from the final tuple.
	query.Tuples[1] = RLTuple{Terminal: false, Timeout: true}
	episode = NewEpisodeItem("e2", "alice", time.Now().UTC(), query)
	assert.False(t, episode.Terminated)
	assert.True(t, episode.Timeout)
}
