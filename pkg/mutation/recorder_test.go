package mutation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixNamespacer struct {
	prefix string
	err    error
}

func (p prefixNamespacer) NamespaceKey(key string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.prefix + key, nil
}

func TestRecorder_PreservesOrder(t *testing.T) {
	var q Queue
	r := NewRecorder(prefixNamespacer{}, &q)

	for i := range 10 {
		key := fmt.Sprintf("k%d", i)
		if i%2 == 0 {
			require.NoError(t, r.RecordSet(key, []byte(key)))
		} else {
			require.NoError(t, r.RecordDelete(key))
		}
	}

	all := q.All()
	require.Len(t, all, 10)
	for i, m := range all {
		assert.Equal(t, fmt.Sprintf("k%d", i), m.Key)
		if i%2 == 0 {
			assert.Equal(t, KindSet, m.Kind)
			assert.Equal(t, []byte(m.Key), m.Value)
		} else {
			assert.Equal(t, KindDelete, m.Kind)
			assert.Nil(t, m.Value)
		}
	}
}

func TestRecorder_NormalizesWhitespace(t *testing.T) {
	var q Queue
	r := NewRecorder(prefixNamespacer{prefix: "app "}, &q)

	require.NoError(t, r.RecordSet("user 1\tname", []byte("v")))
	require.NoError(t, r.RecordDelete("user 1\nname"))

	all := q.All()
	require.Len(t, all, 2)
	assert.Equal(t, Set("app_user_1_name", []byte("v")), all[0])
	assert.Equal(t, Delete("app_user_1_name"), all[1])
}

func TestRecorder_KeepsDuplicates(t *testing.T) {
	var q Queue
	r := NewRecorder(prefixNamespacer{}, &q)

	require.NoError(t, r.RecordSet("k", []byte("1")))
	require.NoError(t, r.RecordSet("k", []byte("2")))
	require.NoError(t, r.RecordDelete("k"))

	assert.Equal(t, []Mutation{
		Set("k", []byte("1")),
		Set("k", []byte("2")),
		Delete("k"),
	}, q.All())
}

func TestRecorder_NamespaceError(t *testing.T) {
	boom := errors.New("namespace exploded")
	var q Queue
	r := NewRecorder(prefixNamespacer{err: boom}, &q)

	assert.ErrorIs(t, r.RecordSet("k", nil), boom)
	assert.ErrorIs(t, r.RecordDelete("k"), boom)
	assert.Equal(t, 0, q.Len())
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"plain":         "plain",
		"a b":           "a_b",
		"a  b":          "a__b",
		" lead":         "_lead",
		"tab\there":     "tab_here",
		"nbsp\u00a0key": "nbsp_key",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), in)
	}
}

func TestQueue_Drain(t *testing.T) {
	var q Queue
	q.Append(Set("a", []byte("1")))
	q.Append(Delete("b"))

	snapshot := q.All()
	drained := q.Drain()

	assert.Equal(t, snapshot, drained)
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())

	q.Append(Delete("c"))
	q.Reset()
	assert.Equal(t, 0, q.Len())
}

func TestKeys(t *testing.T) {
	ms := []Mutation{Set("b", nil), Delete("a"), Set("b", []byte("x")), Delete("c")}
	assert.Equal(t, []string{"b", "a", "c"}, Keys(ms))
	assert.Empty(t, Keys(nil))
}
