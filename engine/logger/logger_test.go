package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Named("renderer").Info("setup complete", zap.Int("width", 640))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "renderer", entries[0].LoggerName)
		assert.Equal(t, int64(640), entries[0].ContextMap()["width"])
	}
}

func TestNilRestoresNop(t *testing.T) {
	SetLogger(nil)
	assert.NotNil(t, L())
}
