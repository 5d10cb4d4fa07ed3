package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/scribelabs/scribe-core/internal/pipeline"
	"github.com/scribelabs/scribe-core/internal/protocol"
)

// Publisher emits transcript completion events. It satisfies the pipeline's
// CompletionPublisher; publish failures are the caller's to log, the pipeline
// never fails a request over them.
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishCompletion(_ context.Context, res *pipeline.Result) error {
	msg := protocol.TranscriptCompleted{
		RequestID:          res.RequestID,
		DurationSec:        res.DurationSec,
		Language:           res.Language,
		Text:               res.Text,
		Segments:           len(res.Segments),
		SeparationFallback: res.Pipeline.Separation.Fallback,
		TotalMS:            res.TimingsMS.Total,
		Timestamp:          time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.client.Conn().Publish(protocol.SubjectTranscriptCompleted, data)
}
