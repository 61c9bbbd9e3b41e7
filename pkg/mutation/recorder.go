package mutation

import (
	"strings"
	"unicode"
)

// Namespacer maps logical keys to the physical keys used by a store.
type Namespacer interface {
	NamespaceKey(key string) (string, error)
}

// Recorder turns set/delete requests into mutations on a queue.
// It never talks to the store beyond key namespacing.
type Recorder struct {
	ns    Namespacer
	queue *Queue
}

// NewRecorder returns a Recorder appending to q.
func NewRecorder(ns Namespacer, q *Queue) *Recorder {
	return &Recorder{ns: ns, queue: q}
}

// RecordDelete queues the removal of key.
func (r *Recorder) RecordDelete(key string) error {
	physical, err := r.physicalKey(key)
	if err != nil {
		return err
	}
	r.queue.Append(Delete(physical))
	return nil
}

// RecordSet queues value under key. The value is kept as is.
func (r *Recorder) RecordSet(key string, value []byte) error {
	physical, err := r.physicalKey(key)
	if err != nil {
		return err
	}
	r.queue.Append(Set(physical, value))
	return nil
}

func (r *Recorder) physicalKey(key string) (string, error) {
	namespaced, err := r.ns.NamespaceKey(key)
	if err != nil {
		return "", err
	}
	return NormalizeKey(namespaced), nil
}

// NormalizeKey replaces every whitespace rune with an underscore.
func NormalizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, key)
}
