// Package models defines the core data structures for the BenchVault API.
//
// This package contains:
//   - User, role, group and membership models (identity)
//   - Benchmark, artifact and episode models (resources)
//   - The filter tree used for list queries
//   - Request/response types for API handlers
//
// Models carry bson tags for MongoDB persistence and json tags for the wire.
package models

import (
	"fmt"
	"math/bits"
)

// Right is a single atomic capability. Rights are stored and evaluated as a
// bitset (RightSet) so union/intersection during authorization is O(1).
type Right uint32

const (
	RightArtifactRead Right = 1 << iota
	RightArtifactCreate
	RightArtifactDelete
	RightBenchmarkRead
	RightBenchmarkCreate
	RightBenchmarkDelete
	RightEpisodeRead
	RightEpisodeCreate
	RightEpisodeDelete
	RightUserRead
	RightUserCreate
	RightUserDelete
	RightUserUpdate
	RightRoleRead
	RightRoleCreate
	RightRoleDelete
	RightGroupRead
	RightGroupCreate
	RightGroupDelete
	RightGroupUpdate

	rightEnd
)

// RightSet is a union of rights.
type RightSet uint32

// AllRights contains every defined right.
const AllRights = RightSet(rightEnd - 1)

var rightNames = map[Right]string{
	RightArtifactRead:    "ARTIFACT_READ",
	RightArtifactCreate:  "ARTIFACT_CREATE",
	RightArtifactDelete:  "ARTIFACT_DELETE",
	RightBenchmarkRead:   "BENCHMARK_READ",
	RightBenchmarkCreate: "BENCHMARK_CREATE",
	RightBenchmarkDelete: "BENCHMARK_DELETE",
	RightEpisodeRead:     "EPISODE_READ",
	RightEpisodeCreate:   "EPISODE_CREATE",
	RightEpisodeDelete:   "EPISODE_DELETE",
	RightUserRead:        "USER_READ",
	RightUserCreate:      "USER_CREATE",
	RightUserDelete:      "USER_DELETE",
	RightUserUpdate:      "USER_UPDATE",
	RightRoleRead:        "ROLE_READ",
	RightRoleCreate:      "ROLE_CREATE",
	RightRoleDelete:      "ROLE_DELETE",
	RightGroupRead:       "GROUP_READ",
	RightGroupCreate:     "GROUP_CREATE",
	RightGroupDelete:     "GROUP_DELETE",
	RightGroupUpdate:     "GROUP_UPDATE",
}

var rightValues = func() map[string]Right {
	m := make(map[string]Right, len(rightNames))
	for r, name := range rightNames {
		m[name] = r
	}
	return m
}()

// String returns the wire name of the right.
func (r Right) String() string {
	if name, ok := rightNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RIGHT(%d)", uint32(r))
}

// ParseRight resolves a wire name to a Right.
func ParseRight(name string) (Right, error) {
	if r, ok := rightValues[name]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("unknown right %q", name)
}

// NewRightSet builds a set from individual rights.
func NewRightSet(rights ...Right) RightSet {
	var s RightSet
	for _, r := range rights {
		s |= RightSet(r)
	}
	return s
}

// ParseRights resolves a list of wire names into a set.
func ParseRights(names []string) (RightSet, error) {
	var s RightSet
	for _, name := range names {
		r, err := ParseRight(name)
		if err != nil {
			return 0, err
		}
		s |= RightSet(r)
	}
	return s, nil
}

// Has reports whether the set contains the right.
func (s RightSet) Has(r Right) bool {
	return s&RightSet(r) != 0
}

// Union returns the combined set.
func (s RightSet) Union(o RightSet) RightSet {
	return s | o
}

// Len returns the number of rights in the set.
func (s RightSet) Len() int {
	return bits.OnesCount32(uint32(s))
}

// Names returns the wire names of all rights in the set, in enum order.
func (s RightSet) Names() []string {
	names := make([]string, 0, s.Len())
	for r := Right(1); r < rightEnd; r <<= 1 {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	return names
}
