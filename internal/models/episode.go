package models

import "time"

// RLTuple is one environment step. State, action and info are arbitrary
// JSON produced by the caller's environment wrapper; the storage layer
// never introspects them.
type RLTuple struct {
	State    any            `json:"state" bson:"state"`
	Action   any            `json:"action" bson:"action"`
	Reward   float64        `json:"reward" bson:"reward"`
	Info     map[string]any `json:"info,omitempty" bson:"info,omitempty"`
	Terminal bool           `json:"terminal" bson:"terminal"`
	Timeout  bool           `json:"timeout" bson:"timeout"`
}

// EpisodeQuery is the record-episode request: the full tuple list in one
// call. Episodes are append-only and never mutated after creation.
type EpisodeQuery struct {
	BenchmarkID string         `json:"benchmark_id" binding:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Tuples      []RLTuple      `json:"tuples" binding:"required"`
}

// EpisodeHeader is an episode without its tuples. Terminated, Timeout and
// NTuples are derived from the tuple list at record time.
type EpisodeHeader struct {
	ID          string         `json:"id" bson:"_id"`
	BenchmarkID string         `json:"benchmark_id" bson:"benchmark_id"`
	CreatedBy   string         `json:"created_by" bson:"created_by"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	Metadata    map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	NTuples     int            `json:"n_tuples" bson:"n_tuples"`
	Terminated  bool           `json:"terminated" bson:"terminated"`
	Timeout     bool           `json:"timeout" bson:"timeout"`
	PublishedIn []string       `json:"published_in" bson:"published_in"`
}

// EpisodeItem is a full stored episode including its ordered tuples.
type EpisodeItem struct {
	EpisodeHeader `bson:",inline"`
	Tuples        []RLTuple `json:"tuples" bson:"tuples"`
}

// Header returns the episode without its tuples.
func (e *EpisodeItem) Header() EpisodeHeader {
	h := e.EpisodeHeader
	if h.PublishedIn == nil {
		h.PublishedIn = []string{}
	}
	return h
}

// NewEpisodeItem derives a stored episode from a record request:
// n_tuples, terminated and timeout come from the tuple list. The tuple
// list must be non-empty.
func NewEpisodeItem(id, caller string, createdAt time.Time, query EpisodeQuery) EpisodeItem {
	last := query.Tuples[len(query.Tuples)-1]
	return EpisodeItem{
		EpisodeHeader: EpisodeHeader{
			ID:          id,
			BenchmarkID: query.BenchmarkID,
			CreatedBy:   caller,
			CreatedAt:   createdAt,
			Metadata:    query.Metadata,
			NTuples:     len(query.Tuples),
			Terminated:  last.Terminal,
			Timeout:     last.Timeout,
			PublishedIn: []string{caller},
		},
		Tuples: query.Tuples,
	}
}

// EpisodeListQuery is the list-episodes request body: the filter tree
// fields inlined at the top level alongside the include_tuples switch.
type EpisodeListQuery struct {
	Type          FilterType `json:"type,omitempty"`
	Key           string     `json:"key,omitempty"`
	Value         any        `json:"value,omitempty"`
	Filters       []Filter   `json:"filters,omitempty"`
	IncludeTuples bool       `json:"include_tuples"`
}

// Filter extracts the embedded filter tree, nil when absent.
func (q *EpisodeListQuery) Filter() (*Filter, error) {
	if q.Type == "" {
		return nil, nil
	}
	f := &Filter{Type: q.Type, Key: q.Key, Value: q.Value, Filters: q.Filters}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
