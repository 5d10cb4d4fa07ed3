package separation

import (
	"context"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/device"
)

type mockIsolator struct{}

// NewMockIsolator returns an isolator that passes the mix through unchanged.
func NewMockIsolator() Isolator {
	return &mockIsolator{}
}

func (m *mockIsolator) Separate(_ context.Context, buf *audio.Buffer, _ device.Handle) (*audio.Buffer, error) {
	stem := &audio.Buffer{
		Samples:    append([]int(nil), buf.Samples...),
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	}
	return stem, nil
}
