package metabans

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// BatchResult is a batch of responses split by outcome, with per-key
// fetch time samples.
type BatchResult struct {
	Stats  Stats
	OK     []Response
	Failed []Response
}

// AuthFailed reports whether any response of the batch was rejected for bad credentials.
func (b BatchResult) AuthFailed() bool {
	for _, r := range b.Failed {
		if r.ErrorCode() == CodeAuthentication {
			return true
		}
	}

	return false
}

// CountOK returns the number of successful responses for action.
func (b BatchResult) CountOK(action Action) int {
	n := 0
	for _, r := range b.OK {
		if r.Action() == string(action) {
			n++
		}
	}

	return n
}

// Classify splits responses into successes and failures. Successes are
// keyed by their echoed action, failures by "<action>_error_<code>".
func Classify(responses []Response) BatchResult {
	res := BatchResult{
		OK:     make([]Response, 0, len(responses)),
		Failed: make([]Response, 0),
		Stats:  make(Stats),
	}

	for _, r := range responses {
		var key string
		if r.OK() {
			res.OK = append(res.OK, r)
			key = r.Action()
		} else {
			res.Failed = append(res.Failed, r)
			key = fmt.Sprintf("%s_error_%d", r.Action(), r.ErrorCode())
		}

		if ms, err := ParseFetchTime(string(r.FetchTime)); err == nil {
			res.Stats.Add(key, ms)
		}
	}

	return res
}

// ParseFetchTime converts a profiler value like "0.123 s" to milliseconds.
func ParseFetchTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "s"))
	if s == "" {
		return 0, errors.New("empty fetch time")
	}

	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fetch time %q: %w", s, err)
	}

	return secs * 1000, nil
}

// Stats maps a classification key to elapsed time samples in milliseconds.
type Stats map[string][]float64

// Add appends a sample for key.
func (s Stats) Add(key string, ms float64) {
	s[key] = append(s[key], ms)
}

// Keys returns the keys in lexical order.
func (s Stats) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Summary describes the samples of one key.
type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Summary computes min, max, mean and sample standard deviation for key.
func (s Stats) Summary(key string) Summary {
	samples := s[key]
	if len(samples) == 0 {
		return Summary{}
	}

	sum := Summary{Count: len(samples), Min: samples[0], Max: samples[0]}
	var total float64
	for _, v := range samples {
		total += v
		sum.Min = math.Min(sum.Min, v)
		sum.Max = math.Max(sum.Max, v)
	}
	sum.Mean = total / float64(len(samples))

	if len(samples) > 1 {
		var sq float64
		for _, v := range samples {
			sq += (v - sum.Mean) * (v - sum.Mean)
		}
		sum.StdDev = math.Sqrt(sq / float64(len(samples)-1))
	}

	return sum
}
