package calibration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannelRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ChannelRange
		wantErr bool
	}{
		{name: "full band", input: "0:4096", want: ChannelRange{Lo: 0, Hi: 4096}},
		{name: "narrow band", input: "1000:3000", want: ChannelRange{Lo: 1000, Hi: 3000}},
		{name: "single channel", input: "5:6", want: ChannelRange{Lo: 5, Hi: 6}},
		{name: "surrounding spaces", input: " 10 : 20 ", want: ChannelRange{Lo: 10, Hi: 20}},
		{name: "negative lower", input: "-1:10", wantErr: true},
		{name: "empty range", input: "10:10", wantErr: true},
		{name: "inverted", input: "20:10", wantErr: true},
		{name: "beyond spectrometer", input: "0:4097", wantErr: true},
		{name: "missing separator", input: "1000", wantErr: true},
		{name: "not a number", input: "a:10", wantErr: true},
		{name: "empty upper", input: "10:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChannelRange(tt.input)
			if tt.wantErr {
				var cfgErr *ConfigurationError
				require.Error(t, err)
				assert.True(t, errors.As(err, &cfgErr))
				assert.Equal(t, "channels", cfgErr.Component)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Hi-tt.want.Lo, got.Len())
		})
	}
}

func TestChannelRange_Slice(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7}

	r, err := NewChannelRange(2, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, r.Slice(values))
	assert.Equal(t, "2:5", r.String())

	// Bounds past the end of a short spectrum are clamped.
	r, err = NewChannelRange(6, 4096)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7}, r.Slice(values))

	r, err = NewChannelRange(100, 200)
	require.NoError(t, err)
	assert.Empty(t, r.Slice(values))

	channels := make([]int, 150)
	for i := range channels {
		channels[i] = i
	}
	got := r.SliceInts(channels)
	require.Len(t, got, 50)
	assert.Equal(t, 100, got[0])
	assert.Equal(t, 149, got[49])
}
