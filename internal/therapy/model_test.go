package therapy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{"00:00", 0, false},
		{"10:00", 600, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"10:60", 0, true},
		{"10", 0, true},
		{"ten:00", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestClockTimeJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		At ClockTime `json:"at"`
	}
	b, err := json.Marshal(wrapper{At: 615})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"10:15"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"at":"09:05"}`), &w))
	assert.Equal(t, ClockTime(545), w.At)

	assert.Error(t, json.Unmarshal([]byte(`{"at":"9am"}`), &w))
}

func TestSessionStatusFromLegacy(t *testing.T) {
	for code, want := range map[int]SessionStatus{
		1: SessionScheduled,
		2: SessionNoShow,
		3: SessionCancelled,
		4: SessionDischarged,
		5: SessionInactive,
	} {
		got, ok := SessionStatusFromLegacy(code)
		require.True(t, ok, code)
		assert.Equal(t, want, got)
	}
	_, ok := SessionStatusFromLegacy(0)
	assert.False(t, ok)
	_, ok = SessionStatusFromLegacy(6)
	assert.False(t, ok)
}
