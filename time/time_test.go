// SPDX-License-Identifier: ice License 1.0

package time

import (
	"testing"
	stdlibtime "time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowIsUTC(t *testing.T) {
	t.Parallel()
	now := Now()
	require.NotNil(t, now.Time)
	assert.Equal(t, stdlibtime.UTC, now.Location())
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()
	original := New(stdlibtime.Date(2024, 1, 2, 3, 4, 5, 6, stdlibtime.UTC))
	data, err := json.Marshal(original)
	require.NoError(t, err)
	var parsed Time
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.True(t, original.Equal(*parsed.Time))
}

func TestJSONZeroValue(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(New(stdlibtime.Unix(0, 0)))
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
	var parsed Time
	require.NoError(t, json.Unmarshal([]byte("null"), &parsed))
	assert.Nil(t, parsed.Time)
}
