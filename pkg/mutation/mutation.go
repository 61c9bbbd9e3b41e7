package mutation

import "fmt"

// Kind tags the variant of a Mutation.
type Kind byte

const (
	KindSet    Kind = 0
	KindDelete Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Mutation is one deferred cache write. Value is nil for deletes.
type Mutation struct {
	Kind  Kind
	Key   string
	Value []byte
}

// Set returns a mutation storing value under key.
func Set(key string, value []byte) Mutation {
	return Mutation{Kind: KindSet, Key: key, Value: value}
}

// Delete returns a mutation removing key.
func Delete(key string) Mutation {
	return Mutation{Kind: KindDelete, Key: key}
}

func (m Mutation) String() string {
	if m.Kind == KindSet {
		return fmt.Sprintf("set %q (%d bytes)", m.Key, len(m.Value))
	}
	return fmt.Sprintf("%s %q", m.Kind, m.Key)
}

// Queue is an ordered list of pending mutations.
// It is owned by a single participant and is not safe for concurrent use.
type Queue struct {
	items []Mutation
}

func (q *Queue) Append(m Mutation) {
	q.items = append(q.items, m)
}

func (q *Queue) Len() int {
	return len(q.items)
}

// All returns a copy of the pending mutations in insertion order.
func (q *Queue) All() []Mutation {
	cp := make([]Mutation, len(q.items))
	copy(cp, q.items)
	return cp
}

// Drain returns the pending mutations and leaves the queue empty.
func (q *Queue) Drain() []Mutation {
	items := q.items
	q.items = nil
	return items
}

func (q *Queue) Reset() {
	q.items = nil
}

// Keys returns the distinct keys touched by ms, in first-touch order.
func Keys(ms []Mutation) []string {
	seen := make(map[string]struct{}, len(ms))
	keys := make([]string, 0, len(ms))
	for _, m := range ms {
		if _, ok := seen[m.Key]; ok {
			continue
		}
		seen[m.Key] = struct{}{}
		keys = append(keys, m.Key)
	}
	return keys
}
