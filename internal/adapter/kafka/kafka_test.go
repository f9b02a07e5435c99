package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	event := domain.PackagePublished{
		Package:      "climate/daily",
		TopHash:      "ab12",
		QualityScore: 87.5,
		Passed:       true,
		Timestamp:    now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("climate/daily"), msg.Key)
	assert.JSONEq(t, `{
		"package": "climate/daily",
		"top_hash": "ab12",
		"quality_score": 87.5,
		"passed": true,
		"timestamp": "2024-03-01T12:00:00Z"
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("package.published"), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded domain.PackagePublished
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)
}
