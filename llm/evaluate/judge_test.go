package evaluate

import (
	"testing"

	"github.com/BaSui01/mediaflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJudgement(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		reason  string
	}{
		{name: "plain json", content: `{"score": 78, "reason": "good"}`, want: 78, reason: "good"},
		{name: "json in prose", content: "Here you go:\n{\"score\": 64, \"reason\": \"ok\"}\nThanks", want: 64, reason: "ok"},
		{name: "string score", content: `{"score": "55", "reason": "meh"}`, want: 55, reason: "meh"},
		{name: "float score", content: `{"score": 82.6}`, want: 83},
		{name: "clamp high", content: `{"score": 150}`, want: 100},
		{name: "clamp low", content: `{"score": -5}`, want: 0},
		{name: "regex colon", content: `Score: 72/100, nicely composed`, want: 72},
		{name: "regex equals", content: `score=88`, want: 88},
		{name: "regex after broken json", content: `{"score": 67, "reason": "unterminated`, want: 67},
		{name: "regex quoted key", content: `"score" : 41`, want: 41},
		{name: "huge float", content: `{"score": 1e30}`, want: 100},
		{name: "huge negative float", content: `{"score": -1e30}`, want: 0},
		{name: "huge string", content: `{"score": "99999999999999999999"}`, want: 100},
		{name: "regex huge", content: `score: 99999999999999999999`, want: 100},
		{name: "regex huge negative", content: `score: -99999999999999999999`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := ParseJudgement(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, j.Score)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, j.Reason)
			}
		})
	}
}

func TestParseJudgement_NoScore(t *testing.T) {
	for _, content := range []string{"", "beautiful image", `{"reason": "no number"}`} {
		_, err := ParseJudgement(content)
		assert.True(t, types.IsCode(err, types.ErrParse), content)
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON(`xx {"a":1} yy`))
	assert.Empty(t, extractJSON(`} {`))
	assert.Empty(t, extractJSON(`none`))
}
