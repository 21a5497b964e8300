// Package quantum produces one-time-pad key material. Real quantum key
// distribution is simulated: bytes come from the operating system CSPRNG and
// the selected protocol contributes advisory metadata (characteristic error
// rate, efficiency) matching the emulated link.
package quantum

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"math/bits"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

// Supported protocol labels.
const (
	ProtocolBB84   = "BB84"
	ProtocolB92    = "B92"
	ProtocolSARG04 = "SARG04"
	ProtocolE91    = "E91"
)

const maxGenerateAttempts = 3

type band struct {
	errorLo    float64
	errorHi    float64
	efficiency float64
}

// Characteristic quantum bit error rate bands and sifting efficiency per
// protocol.
var protocolBands = map[string]band{
	ProtocolBB84:   {errorLo: 0.001, errorHi: 0.01, efficiency: 0.5},
	ProtocolB92:    {errorLo: 0.002, errorHi: 0.015, efficiency: 0.25},
	ProtocolSARG04: {errorLo: 0.001, errorHi: 0.008, efficiency: 0.25},
	ProtocolE91:    {errorLo: 0.0005, errorHi: 0.005, efficiency: 0.5},
}

// Metadata describes one generation run.
type Metadata struct {
	Protocol           string
	ErrorRate          float64
	Efficiency         float64
	EntropyQuality     float64
	Attempt            int
	VerificationPassed bool
	GeneratedAt        time.Time
}

// Report carries the outcome of the randomness battery.
type Report struct {
	EntropyQuality float64
	EntropyOK      bool
	FrequencyOK    bool
	RunsOK         bool
	Passed         bool
}

// Generator draws key material for a fixed simulated protocol.
type Generator struct {
	protocol string
	logger   *zap.Logger
}

// NewGenerator normalizes the protocol label, falling back to BB84 for
// anything it does not recognize.
func NewGenerator(protocol string, logger *zap.Logger) *Generator {
	scoped := logger.With(zap.String("service", "quantum_generator"))

	normalized := strings.ToUpper(strings.TrimSpace(protocol))
	if _, ok := protocolBands[normalized]; !ok {
		if normalized != "" {
			scoped.Warn("Unknown quantum protocol, falling back",
				zap.String("protocol", protocol),
				zap.String("fallback", ProtocolBB84))
		}
		normalized = ProtocolBB84
	}

	return &Generator{protocol: normalized, logger: scoped}
}

// Protocol returns the normalized protocol label this generator simulates.
func (g *Generator) Protocol() string { return g.protocol }

// Generate returns lengthBits of fresh key material plus simulation
// metadata. The randomness battery gets up to three attempts; a persistent
// failure releases the last attempt with a warning rather than blocking
// issuance.
func (g *Generator) Generate(lengthBits int) ([]byte, Metadata, error) {
	if lengthBits <= 0 || lengthBits%8 != 0 {
		return nil, Metadata{}, keyerrors.New(keyerrors.KindInvalidArgument, "key length must be a positive multiple of 8 bits")
	}

	var (
		key    []byte
		report Report
	)
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		key = make([]byte, lengthBits/8)
		if _, err := rand.Read(key); err != nil {
			return nil, Metadata{}, keyerrors.Wrap(keyerrors.KindDependency, "entropy source unavailable", err)
		}

		report = VerifyRandomness(key)
		if report.Passed {
			return key, g.metadata(report, attempt), nil
		}
	}

	g.logger.Warn("Key randomness battery failed, releasing last attempt",
		zap.Int("length_bits", lengthBits),
		zap.Float64("entropy_quality", report.EntropyQuality))

	return key, g.metadata(report, maxGenerateAttempts), nil
}

func (g *Generator) metadata(report Report, attempt int) Metadata {
	b := protocolBands[g.protocol]
	return Metadata{
		Protocol:           g.protocol,
		ErrorRate:          b.errorLo + randomFraction()*(b.errorHi-b.errorLo),
		Efficiency:         b.efficiency,
		EntropyQuality:     report.EntropyQuality,
		Attempt:            attempt,
		VerificationPassed: report.Passed,
		GeneratedAt:        time.Now().UTC(),
	}
}

// VerifyRandomness runs statistical sanity checks on key material: a
// length-aware Shannon entropy floor, a bit-frequency test and a runs test,
// each bounded at four standard deviations.
func VerifyRandomness(key []byte) Report {
	var report Report
	if len(key) == 0 {
		return report
	}

	report.EntropyQuality = math.Min(shannonEntropy(key)/8.0, 1.0)
	// A key of n bytes can reach at most log2(n) bits of byte entropy.
	attainable := math.Min(math.Log2(float64(len(key))), 8.0) / 8.0
	report.EntropyOK = report.EntropyQuality >= 0.85*attainable

	totalBits := float64(len(key) * 8)
	tolerance := 2 * math.Sqrt(totalBits)

	var ones float64
	for _, b := range key {
		ones += float64(bits.OnesCount8(b))
	}
	report.FrequencyOK = math.Abs(ones-totalBits/2) < tolerance

	runs := 0
	prev := -1
	for _, b := range key {
		for i := 0; i < 8; i++ {
			bit := int(b>>uint(i)) & 1
			if bit != prev {
				runs++
			}
			prev = bit
		}
	}
	report.RunsOK = math.Abs(float64(runs)-totalBits/2) < tolerance

	report.Passed = report.EntropyOK && report.FrequencyOK && report.RunsOK
	return report
}

func shannonEntropy(key []byte) float64 {
	var counts [256]int
	for _, b := range key {
		counts[b]++
	}

	total := float64(len(key))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func randomFraction() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	return float64(binary.BigEndian.Uint64(buf[:])) / float64(math.MaxUint64)
}
