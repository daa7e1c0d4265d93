package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCounterHook(t *testing.T) {
	counter := &Counter{}
	core, _ := observer.New(zapcore.DebugLevel)
	log := zap.New(core, zap.Hooks(counter.Hook))

	log.Info("fine")
	log.Warn("skipped class")
	log.Warn("cardinality")
	log.Error("dropped node")

	assert.EqualValues(t, 2, counter.Warnings())
	assert.EqualValues(t, 1, counter.Errors())
	assert.Equal(t, "2 warnings, 1 errors", counter.String())

	counter.Reset()
	assert.Zero(t, counter.Warnings())
	assert.Zero(t, counter.Errors())
}

func TestNew(t *testing.T) {
	log, err := New("warn", false, &Counter{})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = New("loud", true, nil)
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	log := zap.NewExample()
	assert.Same(t, log, OrNop(log))
}
