package launchwatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/launchwatch/core"
)

func TestNewBot_RejectsUnsplittablePair(t *testing.T) {
	for _, pair := range []string{"", "X"} {
		_, err := NewBot(context.Background(), core.Settings{Pair: pair}, nil)
		require.Error(t, err, "pair %q", pair)
		assert.ErrorIs(t, err, core.ErrInvalidPair)
	}
}
