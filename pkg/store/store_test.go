package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespace(t *testing.T) {
	got, err := Namespace("app", "user:1")
	assert.NoError(t, err)
	assert.Equal(t, "app:user:1", got)

	got, err = Namespace("", "user:1")
	assert.NoError(t, err)
	assert.Equal(t, "user:1", got)

	_, err = Namespace("app", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}
