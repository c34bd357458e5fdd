package cache

import (
	"context"
	"net"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_FailsFastWhenUnreachable(t *testing.T) {
	// Grab a free port and release it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client, err := NewRedisClient(context.Background(), &redis.Options{Addr: addr, MaxRetries: -1})

	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}
