package intake

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/liveintake/intake/internal/platform/broadcast"
)

// Publisher writes form and status updates to the shared channel. Delivery is
// best effort: failures are logged and swallowed, nothing is retried and the
// caller never sees an error.
type Publisher struct {
	channel broadcast.Publisher
	topic   string
	logger  zerolog.Logger
}

// NewPublisher creates a Publisher for topic. A nil channel behaves like a
// channel that is not connected yet: every publish is dropped.
func NewPublisher(channel broadcast.Publisher, topic string, logger zerolog.Logger) *Publisher {
	return &Publisher{channel: channel, topic: topic, logger: logger}
}

// FormUpdate publishes the complete record for patientID.
func (p *Publisher) FormUpdate(ctx context.Context, patientID string, r Record) {
	p.send(ctx, broadcast.FormUpdate{PatientID: patientID, Data: r.Fields()})
}

// Status publishes a status change for patientID.
func (p *Publisher) Status(ctx context.Context, patientID string, status broadcast.Status) {
	p.send(ctx, broadcast.StatusUpdate{PatientID: patientID, Status: status})
}

func (p *Publisher) send(ctx context.Context, msg broadcast.Message) {
	if p == nil || p.channel == nil {
		return
	}
	env, err := broadcast.Encode(p.topic, msg)
	if err != nil {
		p.logger.Debug().Err(err).Str("patient_id", msg.Session()).Msg("encode broadcast")
		return
	}
	if err := p.channel.Publish(ctx, env); err != nil {
		p.logger.Debug().Err(err).
			Str("patient_id", msg.Session()).
			Str("event", string(env.Event)).
			Msg("broadcast dropped")
	}
}
