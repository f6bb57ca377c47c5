package db

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/models"
)

// ConvertFilterToQuery translates a filter tree into the native Mongo
// query form. A nil filter matches everything.
//
//	EQ  k v  -> {k: v}
//	GEQ k v  -> {k: {$gte: v}}
//	LEQ k v  -> {k: {$lte: v}}
//	GT  k v  -> {k: {$gt: v}}
//	LT  k v  -> {k: {$lt: v}}
//	NE  k v  -> {k: {$ne: v}}
//	IN  k vs -> {k: {$in: vs}}
//	AND [..] -> {$and: [..]}
//	OR  [..] -> {$or: [..]}
func ConvertFilterToQuery(f *models.Filter) (bson.M, error) {
	if f == nil {
		return bson.M{}, nil
	}
	switch f.Type {
	case models.FilterEQ:
		return bson.M{f.Key: f.Value}, nil
	case models.FilterGEQ:
		return bson.M{f.Key: bson.M{"$gte": f.Value}}, nil
	case models.FilterLEQ:
		return bson.M{f.Key: bson.M{"$lte": f.Value}}, nil
	case models.FilterGT:
		return bson.M{f.Key: bson.M{"$gt": f.Value}}, nil
	case models.FilterLT:
		return bson.M{f.Key: bson.M{"$lt": f.Value}}, nil
	case models.FilterNE:
		return bson.M{f.Key: bson.M{"$ne": f.Value}}, nil
	case models.FilterIN:
		return bson.M{f.Key: bson.M{"$in": f.Value}}, nil
	case models.FilterAND, models.FilterOR:
		sub := make([]bson.M, 0, len(f.Filters))
		for i := range f.Filters {
			q, err := ConvertFilterToQuery(&f.Filters[i])
			if err != nil {
				return nil, err
			}
			sub = append(sub, q)
		}
		op := "$and"
		if f.Type == models.FilterOR {
			op = "$or"
		}
		return bson.M{op: sub}, nil
	default:
		return nil, fmt.Errorf("unknown filter type %q", f.Type)
	}
}

// scopeQuery builds the authorization predicate for list queries from the
// evaluator's read scope. It is ANDed with the caller's filter so that
// visibility is enforced inside the backend query, not post-hoc.
func scopeQuery(caller string, scope access.ReadScope) bson.M {
	if scope.Everything {
		return bson.M{}
	}
	or := []bson.M{}
	if scope.Owned {
		or = append(or, bson.M{"created_by": caller})
	}
	if len(scope.Groups) > 0 {
		or = append(or, bson.M{"published_in": bson.M{"$in": scope.Groups}})
	}
	if len(or) == 0 {
		// No visibility at all: match nothing.
		return bson.M{"_id": bson.M{"$exists": false}}
	}
	return bson.M{"$or": or}
}

// listQuery combines a caller filter with the authorization predicate.
func listQuery(caller string, scope access.ReadScope, filter *models.Filter) (bson.M, error) {
	userQuery, err := ConvertFilterToQuery(filter)
	if err != nil {
		return nil, err
	}
	authQuery := scopeQuery(caller, scope)
	if len(userQuery) == 0 {
		return authQuery, nil
	}
	if len(authQuery) == 0 {
		return userQuery, nil
	}
	return bson.M{"$and": []bson.M{authQuery, userQuery}}, nil
}
