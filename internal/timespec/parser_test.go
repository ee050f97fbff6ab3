package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAt(t *testing.T) {
	now := time.Date(2025, 10, 29, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		spec    string
		want    int64
		wantErr bool
	}{
		{spec: "1h", want: now.Add(-time.Hour).UnixMilli()},
		{spec: "1h30m", want: now.Add(-90 * time.Minute).UnixMilli()},
		{spec: "2025-10-29T13:00:00Z", want: time.Date(2025, 10, 29, 13, 0, 0, 0, time.UTC).UnixMilli()},
		{spec: "", wantErr: true},
		{spec: "-1h", wantErr: true},
		{spec: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseAt(tt.spec, now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRange(t *testing.T) {
	t.Run("unbounded", func(t *testing.T) {
		since, until, err := ParseRange("", "")
		require.NoError(t, err)
		assert.Zero(t, since)
		assert.Zero(t, until)
	})

	t.Run("ordered durations", func(t *testing.T) {
		since, until, err := ParseRange("2h", "1h")
		require.NoError(t, err)
		assert.Less(t, since, until)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, _, err := ParseRange("1h", "2h")
		assert.ErrorContains(t, err, "--since must be before --until")
	})

	t.Run("bad until", func(t *testing.T) {
		_, _, err := ParseRange("", "soon")
		assert.ErrorContains(t, err, "invalid --until")
	})
}
