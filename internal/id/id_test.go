package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Monotonic(t *testing.T) {
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = New()
	}

	assert.True(t, sort.StringsAreSorted(ids))

	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		assert.Len(t, v, 26)
		_, dup := seen[v]
		require.False(t, dup, "duplicate id %s", v)
		seen[v] = struct{}{}
	}
}

func TestAt_RoundTripsTime(t *testing.T) {
	ts := time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)

	got, err := Time(At(ts))
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}

func TestTime_Invalid(t *testing.T) {
	_, err := Time("not-a-ulid")
	assert.Error(t, err)
}
