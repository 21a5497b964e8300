package metrics

import (
	"sync"
	"time"
)

// windowSize caps every latency and size series; older samples roll off.
const windowSize = 100

type observation struct {
	value float64
	at    time.Time
}

// MetricsCollector aggregates in-process counters and short sample windows
// for the /metrics endpoint. It is safe for concurrent use.
type MetricsCollector struct {
	mu        sync.RWMutex
	counters  map[string]map[string]int64
	latencies map[string][]time.Duration
	sizes     map[string][]observation
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]map[string]int64),
		latencies: make(map[string][]time.Duration),
		sizes:     make(map[string][]observation),
	}
}

// IncrementCounter bumps the named counter. Labels are optional; only the
// first label pair contributes to the series key.
func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	labelKey := "default"
	for k, v := range labels {
		labelKey = k + ":" + v
		break
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, ok := mc.counters[name]; !ok {
		mc.counters[name] = make(map[string]int64)
	}
	mc.counters[name][labelKey]++
}

// ObserveLatency records one duration sample for the named operation.
func (mc *MetricsCollector) ObserveLatency(name string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	samples := append(mc.latencies[name], duration)
	if len(samples) > windowSize {
		samples = samples[len(samples)-windowSize:]
	}
	mc.latencies[name] = samples
}

// ObserveSize records one size sample for the named series.
func (mc *MetricsCollector) ObserveSize(name string, size float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	samples := append(mc.sizes[name], observation{value: size, at: time.Now()})
	if len(samples) > windowSize {
		samples = samples[len(samples)-windowSize:]
	}
	mc.sizes[name] = samples
}

// GetCounters returns a copy of all counter series.
func (mc *MetricsCollector) GetCounters() map[string]map[string]int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	counters := make(map[string]map[string]int64, len(mc.counters))
	for name, series := range mc.counters {
		counters[name] = make(map[string]int64, len(series))
		for label, value := range series {
			counters[name][label] = value
		}
	}
	return counters
}

// GetLatencies summarizes each latency window as avg/max milliseconds plus
// the sample count.
func (mc *MetricsCollector) GetLatencies() map[string]map[string]float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make(map[string]map[string]float64, len(mc.latencies))
	for name, durations := range mc.latencies {
		if len(durations) == 0 {
			continue
		}

		var sum, max time.Duration
		for _, d := range durations {
			sum += d
			if d > max {
				max = d
			}
		}
		result[name] = map[string]float64{
			"avg_ms":  float64(sum) / float64(len(durations)) / float64(time.Millisecond),
			"max_ms":  float64(max) / float64(time.Millisecond),
			"samples": float64(len(durations)),
		}
	}
	return result
}

// GetSizes summarizes each size window as avg/max values.
func (mc *MetricsCollector) GetSizes() map[string]map[string]float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make(map[string]map[string]float64, len(mc.sizes))
	for name, observations := range mc.sizes {
		if len(observations) == 0 {
			continue
		}

		var sum, max float64
		for _, obs := range observations {
			sum += obs.value
			if obs.value > max {
				max = obs.value
			}
		}
		result[name] = map[string]float64{
			"avg": sum / float64(len(observations)),
			"max": max,
		}
	}
	return result
}
