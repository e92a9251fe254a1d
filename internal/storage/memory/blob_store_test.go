package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBlobStore()

	ok, err := store.Exists(ctx, "1990/Jan/A.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	uri, err := store.PutObject(ctx, "1990/Jan/A.pdf", "application/pdf", bytes.NewReader([]byte("%PDF")))
	require.NoError(t, err)
	assert.Equal(t, "memory://1990/Jan/A.pdf", uri)

	ok, err = store.Exists(ctx, "1990/Jan/A.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	data, contentType, found := store.Get("1990/Jan/A.pdf")
	require.True(t, found)
	assert.Equal(t, "%PDF", string(data))
	assert.Equal(t, "application/pdf", contentType)

	data[0] = 'X'
	again, _, _ := store.Get("1990/Jan/A.pdf")
	assert.Equal(t, "%PDF", string(again), "Get must return a copy")

	_, err = store.PutObject(ctx, "", "text/plain", bytes.NewReader(nil))
	assert.Error(t, err)

	_, err = store.PutObject(ctx, "0/B.pdf", "application/pdf", bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"0/B.pdf", "1990/Jan/A.pdf"}, store.Keys())
}
