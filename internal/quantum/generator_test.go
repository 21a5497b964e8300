package quantum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

func TestGenerateReturnsExactLength(t *testing.T) {
	g := NewGenerator(ProtocolBB84, zap.NewNop())

	for _, bits := range []int{64, 256, 1024, 4096} {
		key, meta, err := g.Generate(bits)
		require.NoError(t, err)
		assert.Len(t, key, bits/8)
		assert.Equal(t, ProtocolBB84, meta.Protocol)
		assert.GreaterOrEqual(t, meta.Attempt, 1)
		assert.LessOrEqual(t, meta.Attempt, maxGenerateAttempts)
	}
}

func TestGenerateRejectsInvalidLength(t *testing.T) {
	g := NewGenerator(ProtocolBB84, zap.NewNop())

	for _, bits := range []int{0, -8, 12, 255} {
		_, _, err := g.Generate(bits)
		assert.True(t, keyerrors.IsKind(err, keyerrors.KindInvalidArgument), "bits=%d", bits)
	}
}

func TestGenerateMetadataWithinProtocolBand(t *testing.T) {
	for protocol, b := range protocolBands {
		g := NewGenerator(protocol, zap.NewNop())

		_, meta, err := g.Generate(256)
		require.NoError(t, err)
		assert.Equal(t, protocol, meta.Protocol)
		assert.GreaterOrEqual(t, meta.ErrorRate, b.errorLo)
		assert.LessOrEqual(t, meta.ErrorRate, b.errorHi)
		assert.Equal(t, b.efficiency, meta.Efficiency)
		assert.False(t, meta.GeneratedAt.IsZero())
	}
}

func TestGenerateLargeKeyPassesBattery(t *testing.T) {
	g := NewGenerator(ProtocolE91, zap.NewNop())

	key, meta, err := g.Generate(2048)
	require.NoError(t, err)
	assert.Len(t, key, 256)
	assert.True(t, meta.VerificationPassed)
	assert.Greater(t, meta.EntropyQuality, 0.85)
}

func TestUnknownProtocolFallsBackToBB84(t *testing.T) {
	assert.Equal(t, ProtocolBB84, NewGenerator("shor", zap.NewNop()).Protocol())
	assert.Equal(t, ProtocolBB84, NewGenerator("", zap.NewNop()).Protocol())
	assert.Equal(t, ProtocolE91, NewGenerator("e91", zap.NewNop()).Protocol())
	assert.Equal(t, ProtocolSARG04, NewGenerator(" sarg04 ", zap.NewNop()).Protocol())
}

func TestVerifyRandomnessRejectsConstantKey(t *testing.T) {
	report := VerifyRandomness(make([]byte, 64))

	assert.False(t, report.Passed)
	assert.False(t, report.EntropyOK)
	assert.False(t, report.FrequencyOK)
	assert.Zero(t, report.EntropyQuality)
}

func TestVerifyRandomnessEmptyKey(t *testing.T) {
	assert.False(t, VerifyRandomness(nil).Passed)
}
