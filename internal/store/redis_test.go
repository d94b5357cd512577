package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis_Addresses(t *testing.T) {
	r, err := NewRedis("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", r.Client.Options().Addr)
	require.NoError(t, r.Close())

	r, err = NewRedis("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", r.Client.Options().Addr)
	assert.Equal(t, 2, r.Client.Options().DB)
	assert.Equal(t, "secret", r.Client.Options().Password)
	require.NoError(t, r.Close())

	_, err = NewRedis("redis://cache:notaport/x")
	assert.Error(t, err)
}

func TestNilHandles(t *testing.T) {
	var r *Redis
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())

	var d *DB
	assert.NoError(t, d.Close())
}
