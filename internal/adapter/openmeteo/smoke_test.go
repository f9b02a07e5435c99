//go:build openmeteo

package openmeteo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-monitor/internal/validation"
)

// These tests hit the real Open-Meteo archive API.
// Run with: go test -tags=openmeteo ./internal/adapter/openmeteo/ -v -count=1

func TestSmoke_FetchDaily(t *testing.T) {
	c := testClient(DefaultBaseURL, 15*time.Second)

	table, err := c.FetchDaily(context.Background(), Request{
		Latitude:  30.27,
		Longitude: -97.74,
		Start:     time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2023, 6, 7, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, table.Rows)

	set, err := validation.NewValidator(nil).Validate(table)
	require.NoError(t, err)
	assert.Equal(t, []string{"OPEN3027_N9774"}, set.Stations())
}
