package authn

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggingEventPublisher writes authentication outcomes to a zerolog logger.
type LoggingEventPublisher struct {
	logger zerolog.Logger
}

func NewLoggingEventPublisher(logger zerolog.Logger) *LoggingEventPublisher {
	return &LoggingEventPublisher{logger: logger}
}

func (p *LoggingEventPublisher) PublishSuccess(_ context.Context, result *Authentication) {
	p.logger.Debug().
		Str("principal", result.Principal).
		Strs("authorities", result.Authorities).
		Msg("authentication succeeded")
}

func (p *LoggingEventPublisher) PublishFailure(_ context.Context, attempt *Authentication, err error) {
	p.logger.Warn().
		Str("principal", attempt.Name()).
		Err(err).
		Msg("authentication failed")
}

// EventPublishers fans events out to every publisher in order.
type EventPublishers []EventPublisher

func (ps EventPublishers) PublishSuccess(ctx context.Context, result *Authentication) {
	for _, p := range ps {
		p.PublishSuccess(ctx, result)
	}
}

func (ps EventPublishers) PublishFailure(ctx context.Context, attempt *Authentication, err error) {
	for _, p := range ps {
		p.PublishFailure(ctx, attempt, err)
	}
}
