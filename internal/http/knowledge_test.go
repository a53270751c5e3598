package http

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnowledgeStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("nil checker", func(t *testing.T) {
		assert.Nil(t, KnowledgeStatus(ctx, nil, []string{"poultry_knowledge"}))
	})

	t.Run("no collections", func(t *testing.T) {
		assert.Nil(t, KnowledgeStatus(ctx, fakeChecker{}, nil))
	})

	t.Run("mixed states", func(t *testing.T) {
		checker := fakeChecker{
			"poultry_knowledge": nil,
			"health":            errors.New("timeout"),
		}
		got := KnowledgeStatus(ctx, checker, []string{"poultry_knowledge", "health", "nutrition"})
		assert.Equal(t, map[string]CollectionState{
			"poultry_knowledge": CollectionReady,
			"health":            CollectionError,
			"nutrition":         CollectionMissing,
		}, got)
	})
}
