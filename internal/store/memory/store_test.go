package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/logbook/internal/store"
	"github.com/shrimpsizemoose/logbook/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, NewMemoryStore())
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/a", store.Document{"name": []byte(`"a"`)}))

	doc, err := s.Get(ctx, "users/a")
	require.NoError(t, err)
	doc["name"] = []byte(`"mutated"`)

	again, err := s.Get(ctx, "users/a")
	require.NoError(t, err)
	assert.Equal(t, "a", again.String("name"))
}
