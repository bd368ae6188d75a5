// Package storetest holds behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/logbook/internal/store"
)

type record struct {
	Name           string   `json:"name"`
	SupervisorCode string   `json:"supervisorCode,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

func mustEncode(t *testing.T, v any) store.Document {
	t.Helper()
	doc, err := store.Encode(v)
	require.NoError(t, err)
	return doc
}

// Run exercises s. The store must be empty.
func Run(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		doc, err := s.Get(ctx, "users/nobody")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "users/u1", mustEncode(t, record{Name: "Jane", SupervisorCode: "IND-JDOE1"})))

		doc, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		require.NotNil(t, doc)

		var got record
		require.NoError(t, doc.Decode(&got))
		assert.Equal(t, "Jane", got.Name)
		assert.Equal(t, "IND-JDOE1", got.SupervisorCode)
	})

	t.Run("set overwrites whole document", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "users/u2", mustEncode(t, record{Name: "Old", SupervisorCode: "ACAD-OX1"})))
		require.NoError(t, s.Set(ctx, "users/u2", mustEncode(t, record{Name: "New"})))

		doc, err := s.Get(ctx, "users/u2")
		require.NoError(t, err)
		assert.Equal(t, "New", doc.String("name"))
		assert.Empty(t, doc.String("supervisorCode"))

		found, err := s.FindEqual(ctx, "users", "supervisorCode", "ACAD-OX1")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("update patches several documents", func(t *testing.T) {
		err := s.Update(ctx,
			store.Patch{Path: "users/u1", Set: map[string]any{"name": "Janet"}},
			store.Patch{Path: "users/u3", Set: map[string]any{"name": "Created"}},
		)
		require.NoError(t, err)

		u1, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.Equal(t, "Janet", u1.String("name"))
		assert.Equal(t, "IND-JDOE1", u1.String("supervisorCode"))

		u3, err := s.Get(ctx, "users/u3")
		require.NoError(t, err)
		assert.Equal(t, "Created", u3.String("name"))
	})

	t.Run("update removes nil fields", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, store.Patch{Path: "users/u3", Set: map[string]any{"name": nil, "other": 1}}))

		doc, err := s.Get(ctx, "users/u3")
		require.NoError(t, err)
		_, ok := doc["name"]
		assert.False(t, ok)
		assert.JSONEq(t, "1", string(doc["other"]))
	})

	t.Run("union is duplicate safe", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			require.NoError(t, s.Update(ctx, store.Patch{Path: "users/u1", Union: map[string][]string{"tags": {"s1"}}}))
		}
		require.NoError(t, s.Update(ctx, store.Patch{Path: "users/u1", Union: map[string][]string{"tags": {"s2", "s1"}}}))

		doc, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		var tags []string
		require.NoError(t, json.Unmarshal(doc["tags"], &tags))
		assert.Equal(t, []string{"s1", "s2"}, tags)
	})

	t.Run("concurrent unions keep every member", func(t *testing.T) {
		var wg sync.WaitGroup
		members := []string{"a", "b", "c", "d", "e"}
		for _, m := range members {
			wg.Add(1)
			go func(m string) {
				defer wg.Done()
				assert.NoError(t, s.Update(ctx, store.Patch{Path: "users/racer", Union: map[string][]string{"tags": {m}}}))
			}(m)
		}
		wg.Wait()

		doc, err := s.Get(ctx, "users/racer")
		require.NoError(t, err)
		var tags []string
		require.NoError(t, json.Unmarshal(doc["tags"], &tags))
		assert.ElementsMatch(t, members, tags)
	})

	t.Run("list children only", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "logbookEntries/s1/e1", mustEncode(t, record{Name: "one"})))
		require.NoError(t, s.Set(ctx, "logbookEntries/s1/e2", mustEncode(t, record{Name: "two"})))
		require.NoError(t, s.Set(ctx, "logbookEntries/s2/e3", mustEncode(t, record{Name: "other"})))

		docs, err := s.List(ctx, "logbookEntries/s1")
		require.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.Equal(t, "one", docs["e1"].String("name"))
		assert.Equal(t, "two", docs["e2"].String("name"))

		empty, err := s.List(ctx, "logbookEntries/nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("find equal", func(t *testing.T) {
		found, err := s.FindEqual(ctx, "users", "supervisorCode", "IND-JDOE1")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Contains(t, found, "u1")

		none, err := s.FindEqual(ctx, "users", "supervisorCode", "IND-NOPE0")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("find equal rejects odd field names", func(t *testing.T) {
		for _, field := range []string{"", "name' OR '1'='1", "a.b", "1st"} {
			_, err := s.FindEqual(ctx, "users", field, "x")
			assert.Error(t, err, field)
		}
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "users/u1"))

		doc, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.Nil(t, doc)

		found, err := s.FindEqual(ctx, "users", "supervisorCode", "IND-JDOE1")
		require.NoError(t, err)
		assert.Empty(t, found)

		require.NoError(t, s.Remove(ctx, "users/never-existed"))
	})

	t.Run("invalid paths", func(t *testing.T) {
		assert.Error(t, s.Set(ctx, "", store.Document{}))
		assert.Error(t, s.Update(ctx, store.Patch{Path: "users//x"}))
	})

	t.Run("new keys are unique", func(t *testing.T) {
		assert.NotEqual(t, s.NewKey(), s.NewKey())
	})
}
