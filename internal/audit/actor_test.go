package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextActor(t *testing.T) {
	resolver := ContextActor{Fallback: StaticActor("Mr. Auditor")}

	t.Run("falls back when context has no actor", func(t *testing.T) {
		actor, err := resolver.CurrentActor(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Mr. Auditor", actor)
	})

	t.Run("prefers the context actor", func(t *testing.T) {
		ctx := WithActor(context.Background(), "Other Auditor")
		actor, err := resolver.CurrentActor(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Other Auditor", actor)
	})

	t.Run("blank context actor is ignored", func(t *testing.T) {
		ctx := WithActor(context.Background(), " ")
		actor, err := resolver.CurrentActor(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Mr. Auditor", actor)
	})

	t.Run("no fallback", func(t *testing.T) {
		_, err := ContextActor{}.CurrentActor(context.Background())
		require.ErrorIs(t, err, ErrNoActor)
	})
}
