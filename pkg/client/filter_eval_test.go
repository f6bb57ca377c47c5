package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchvault/benchvault/internal/models"
)

func doc(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestMatchesFilter_Leaves(t *testing.T) {
	d := doc(t, `{
		"hash": "h1",
		"n_tuples": 5,
		"terminated": true,
		"metadata": {"difficulty": "easy", "version": "1.0"}
	}`)

	cases := []struct {
		name   string
		filter models.Filter
		want   bool
	}{
		{"eq string", models.EQ("hash", "h1"), true},
		{"eq miss", models.EQ("hash", "h2"), false},
		{"eq dotted path", models.EQ("metadata.difficulty", "easy"), true},
		{"eq bool", models.EQ("terminated", true), true},
		{"eq missing key", models.EQ("nope", "x"), false},
		{"ne", models.NE("hash", "h2"), true},
		{"ne equal", models.NE("hash", "h1"), false},
		{"geq", models.GEQ("n_tuples", 5), true},
		{"geq above", models.GEQ("n_tuples", 6), false},
		{"leq", models.LEQ("n_tuples", 5), true},
		{"gt", models.GT("n_tuples", 4), true},
		{"gt equal", models.GT("n_tuples", 5), false},
		{"lt", models.LT("n_tuples", 6), true},
		{"in", models.IN("metadata.difficulty", []any{"easy", "hard"}), true},
		{"in miss", models.IN("metadata.difficulty", []any{"medium", "hard"}), false},
		{"string order", models.GEQ("metadata.version", "1.0"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, matchesFilter(d, &tc.filter))
		})
	}
}

func TestMatchesFilter_NumericCoercion(t *testing.T) {
	// JSON decoding yields float64; filters built in Go carry ints.
	d := doc(t, `{"n_tuples": 5}`)
	eq := models.EQ("n_tuples", 5)
	assert.True(t, matchesFilter(d, &eq))
}

func TestMatchesFilter_Branches(t *testing.T) {
	d := doc(t, `{"state": "active", "reward": 7.5}`)

	and := models.AND(models.EQ("state", "active"), models.GEQ("reward", 5.0))
	assert.True(t, matchesFilter(d, &and))

	and = models.AND(models.EQ("state", "active"), models.GEQ("reward", 10.0))
	assert.False(t, matchesFilter(d, &and))

	or := models.OR(models.EQ("state", "idle"), models.GEQ("reward", 5.0))
	assert.True(t, matchesFilter(d, &or))

	nested := models.AND(
		models.EQ("state", "active"),
		models.OR(models.GEQ("reward", 10.0), models.LT("reward", 8.0)),
	)
	assert.True(t, matchesFilter(d, &nested))
}

func TestMatchesFilter_NilMatchesAll(t *testing.T) {
	assert.True(t, matchesFilter(doc(t, `{}`), nil))
}

// Filter equivalence: the in-memory interpretation agrees with a plain
// per-document predicate over a small collection.
func TestMatchesFilter_CollectionEquivalence(t *testing.T) {
	collection := []map[string]any{
		doc(t, `{"id": "a", "reward": 1.0, "state": "active"}`),
		doc(t, `{"id": "b", "reward": 5.0, "state": "active"}`),
		doc(t, `{"id": "c", "reward": 9.0, "state": "done"}`),
	}
	filter := models.AND(
		models.EQ("state", "active"),
		models.GEQ("reward", 2.0),
	)

	var matched []string
	for _, d := range collection {
		if matchesFilter(d, &filter) {
			matched = append(matched, d["id"].(string))
		}
	}
	assert.Equal(t, []string{"b"}, matched)
}
