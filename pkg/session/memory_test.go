package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/sentinel/pkg/message"
)

func TestMemoryStore_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Append(ctx, "s1", message.User("hi"), message.Assistant("hello"))
	require.NoError(t, err)

	msgs, err := store.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, message.RoleUser, msgs[0].Role)
	assert.Equal(t, message.RoleAssistant, msgs[1].Role)
}

func TestMemoryStore_UnknownSessionReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	msgs, err := store.GetMessages(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	count, err := store.MessageCount(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStore_ClearKeepsSessionID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, "s1", message.User("hi"), message.Assistant("hello")))
	require.NoError(t, store.Clear(ctx, "s1"))

	count, err := store.MessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, store.Append(ctx, "s1", message.User("again"), message.Assistant("ok")))
	count, err = store.MessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, "s1", message.User("hi"), message.Assistant("hello")))
	require.NoError(t, store.Delete(ctx, "s1"))

	ids, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "s1")
}

func TestMemoryStore_ListSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, "a", message.User("1"), message.Assistant("1")))
	require.NoError(t, store.Append(ctx, "b", message.User("2"), message.Assistant("2")))

	ids, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestMemoryStore_CrossSessionConcurrency(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%5))
			_ = store.Append(ctx, id, message.User("q"), message.Assistant("a"))
		}(i)
	}
	wg.Wait()

	ids, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ids), 5)
}
