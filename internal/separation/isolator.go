package separation

import (
	"context"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/device"
)

// Isolator extracts a vocal stem from a full-mix waveform.
type Isolator interface {
	Separate(ctx context.Context, buf *audio.Buffer, dev device.Handle) (*audio.Buffer, error)
}
