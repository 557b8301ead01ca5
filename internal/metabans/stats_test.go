package metabans

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponses(t *testing.T, raw string) []Response {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	return env.Responses
}

func TestParseFetchTime(t *testing.T) {
	ms, err := ParseFetchTime("1.234 s")
	require.NoError(t, err)
	assert.InDelta(t, 1234.0, ms, 1e-9)

	ms, err = ParseFetchTime("0.05s")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, ms, 1e-9)

	_, err = ParseFetchTime("")
	assert.Error(t, err)

	_, err = ParseFetchTime("fast s")
	assert.Error(t, err)
}

func TestStatsSummary(t *testing.T) {
	s := make(Stats)
	for _, v := range []float64{100, 200, 300} {
		s.Add("mb_sight_player", v)
	}

	sum := s.Summary("mb_sight_player")
	assert.Equal(t, 3, sum.Count)
	assert.InDelta(t, 100.0, sum.Min, 1e-9)
	assert.InDelta(t, 300.0, sum.Max, 1e-9)
	assert.InDelta(t, 200.0, sum.Mean, 1e-9)
	assert.InDelta(t, 100.0, sum.StdDev, 1e-9)

	assert.Equal(t, Summary{}, s.Summary("missing"))

	s.Add("single", 42)
	assert.Zero(t, s.Summary("single").StdDev)
}

func TestClassifyAllOK(t *testing.T) {
	responses := decodeResponses(t, `{"responses":[
		{"status":"OK","request":{"action":"mb_sight_player"},"fetch_time":"0.100 s","data":{}},
		{"status":"OK","request":{"action":"mb_sight_player"},"fetch_time":"0.200 s","data":{}},
		{"status":"OK","request":{"action":"mb_assess_player"},"fetch_time":"0.300 s","data":{}}
	]}`)

	res := Classify(responses)
	assert.Len(t, res.OK, len(responses))
	assert.Empty(t, res.Failed)
	assert.Len(t, res.Stats["mb_sight_player"], 2)
	assert.Len(t, res.Stats["mb_assess_player"], 1)
	assert.Equal(t, 1, res.CountOK(ActionAssessPlayer))
	assert.False(t, res.AuthFailed())
}

func TestClassifySightAndFailedAssessment(t *testing.T) {
	responses := decodeResponses(t, `{"responses":[
		{"status":"OK","request":{"action":"mb_sight_player"},"fetch_time":"0.012 s","data":{}},
		{"error":{"code":9,"message":"unknown player"},"request":{"action":"mb_assess_player"},"fetch_time":"0.034 s"}
	]}`)

	res := Classify(responses)
	require.Len(t, res.OK, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "mb_sight_player", res.OK[0].Action())
	assert.Equal(t, []string{"mb_assess_player_error_9", "mb_sight_player"}, res.Stats.Keys())
	assert.InDelta(t, 34.0, res.Stats["mb_assess_player_error_9"][0], 1e-9)
}

func TestClassifyPartitionsMixedInput(t *testing.T) {
	responses := decodeResponses(t, `{"responses":[
		{"status":"OK","request":{"action":"a"},"fetch_time":"0.1 s"},
		{"status":"ERROR","error":{"code":3},"request":{"action":"b"},"fetch_time":"0.1 s"},
		{"request":{"action":"c"}},
		{"status":"OK","request":{"action":"d"},"fetch_time":"garbage"},
		{"error":{"code":5},"request":{"action":"e"},"fetch_time":"0.2 s"}
	]}`)

	res := Classify(responses)
	assert.Len(t, res.OK, 2)
	assert.Len(t, res.Failed, 3)
	assert.Equal(t, len(responses), len(res.OK)+len(res.Failed))
	assert.True(t, res.AuthFailed())
	assert.Contains(t, res.Stats, "b_error_3")
	assert.NotContains(t, res.Stats, "d")
}

func TestClassifyEmpty(t *testing.T) {
	res := Classify(nil)
	assert.Empty(t, res.OK)
	assert.Empty(t, res.Failed)
	assert.Empty(t, res.Stats)
}
