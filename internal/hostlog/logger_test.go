package hostlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLReturnsUsableLogger(t *testing.T) {
	log := L()
	require.NotNil(t, log)
	assert.NotPanics(t, func() { log.Info("hostlog test message") })
}

func TestSReturnsUsableSugaredLogger(t *testing.T) {
	s := S()
	require.NotNil(t, s)
	assert.NotPanics(t, func() { s.Infow("hostlog sugared test message", "k", "v") })
}

func TestInitIsIdempotent(t *testing.T) {
	first := L()
	Init()
	Init()
	assert.Same(t, first, L())
}

func TestWithContextAddsFields(t *testing.T) {
	enriched := WithContext(zap.String("session", "abc"))
	require.NotNil(t, enriched)
	assert.NotPanics(t, func() { enriched.Info("enriched message") })
}
