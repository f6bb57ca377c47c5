package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/models"
)

func TestConvertFilterToQuery_Leaves(t *testing.T) {
	cases := []struct {
		name   string
		filter models.Filter
		want   bson.M
	}{
		{"eq", models.EQ("benchmark_id", "123"), bson.M{"benchmark_id": "123"}},
		{"geq", models.GEQ("reward", 10.0), bson.M{"reward": bson.M{"$gte": 10.0}}},
		{"leq", models.LEQ("time", 30), bson.M{"time": bson.M{"$lte": 30}}},
		{"gt", models.GT("n_tuples", 5), bson.M{"n_tuples": bson.M{"$gt": 5}}},
		{"lt", models.LT("n_tuples", 5), bson.M{"n_tuples": bson.M{"$lt": 5}}},
		{"ne", models.NE("created_by", "bob"), bson.M{"created_by": bson.M{"$ne": "bob"}}},
		{"in", models.IN("difficulty", []any{"easy", "hard"}),
			bson.M{"difficulty": bson.M{"$in": []any{"easy", "hard"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ConvertFilterToQuery(&tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConvertFilterToQuery_Nil(t *testing.T) {
	got, err := ConvertFilterToQuery(nil)
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, got)
}

func TestConvertFilterToQuery_Combinations(t *testing.T) {
	andFilter := models.AND(
		models.EQ("state", "active"),
		models.GEQ("reward", 10.0),
	)
	got, err := ConvertFilterToQuery(&andFilter)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$and": []bson.M{
		{"state": "active"},
		{"reward": bson.M{"$gte": 10.0}},
	}}, got)

	orFilter := models.OR(
		models.EQ("status", "pending"),
		models.LEQ("time", 30),
	)
	got, err = ConvertFilterToQuery(&orFilter)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$or": []bson.M{
		{"status": "pending"},
		{"time": bson.M{"$lte": 30}},
	}}, got)
}

func TestConvertFilterToQuery_Nested(t *testing.T) {
	nested := models.AND(
		models.EQ("state", "active"),
		models.OR(
			models.GEQ("reward", 5.0),
			models.LEQ("time", 100),
		),
	)
	got, err := ConvertFilterToQuery(&nested)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$and": []bson.M{
		{"state": "active"},
		{"$or": []bson.M{
			{"reward": bson.M{"$gte": 5.0}},
			{"time": bson.M{"$lte": 100}},
		}},
	}}, got)
}

func TestConvertFilterToQuery_ComplexChain(t *testing.T) {
	complexFilter := models.AND(
		models.OR(
			models.EQ("state", "active"),
			models.GEQ("score", 90),
		),
		models.AND(
			models.EQ("validated", "true"),
			models.OR(
				models.LEQ("time", 50),
				models.GEQ("reward", 7.5),
			),
		),
	)
	got, err := ConvertFilterToQuery(&complexFilter)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$and": []bson.M{
		{"$or": []bson.M{
			{"state": "active"},
			{"score": bson.M{"$gte": 90}},
		}},
		{"$and": []bson.M{
			{"validated": "true"},
			{"$or": []bson.M{
				{"time": bson.M{"$lte": 50}},
				{"reward": bson.M{"$gte": 7.5}},
			}},
		}},
	}}, got)
}

func TestScopeQuery(t *testing.T) {
	// Global admin: unrestricted.
	assert.Equal(t, bson.M{}, scopeQuery("admin", access.ReadScope{Everything: true}))

	// Standard user: own rows plus readable scopes.
	got := scopeQuery("alice", access.ReadScope{Owned: true, Groups: []string{"global", "alice"}})
	assert.Equal(t, bson.M{"$or": []bson.M{
		{"created_by": "alice"},
		{"published_in": bson.M{"$in": []string{"global", "alice"}}},
	}}, got)

	// No visibility at all: the predicate matches nothing.
	got = scopeQuery("nobody", access.ReadScope{})
	assert.Equal(t, bson.M{"_id": bson.M{"$exists": false}}, got)
}

func TestListQuery_CombinesAuthAndFilter(t *testing.T) {
	filter := models.EQ("hash", "h1")
	scope := access.ReadScope{Owned: true}

	got, err := listQuery("alice", scope, &filter)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$and": []bson.M{
		{"$or": []bson.M{{"created_by": "alice"}}},
		{"hash": "h1"},
	}}, got)

	// Admin + no filter collapses to match-all.
	got, err = listQuery("admin", access.ReadScope{Everything: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, got)
}
