package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/anttijankeri/object-image-server/internal/service"
)

const TypeSweep = "sweep"

type TaskPayload struct {
	Type        string `json:"type"`
	RequestedAt string `json:"requestedAt"`
}

type OrphanSweeper interface {
	Run(ctx context.Context) (service.SweepReport, error)
}

type Processor struct {
	logger  zerolog.Logger
	sweeper OrphanSweeper
}

func NewProcessor(logger zerolog.Logger, sweeper OrphanSweeper) *Processor {
	return &Processor{
		logger:  logger,
		sweeper: sweeper,
	}
}

// Handle runs one stream message. Unknown task types are logged and
// acknowledged so they do not come back through the stalled-claim loop.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case TypeSweep:
		return p.handleSweep(ctx, msg.ID, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleSweep(ctx context.Context, messageID string, payload TaskPayload) error {
	report, err := p.sweeper.Run(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	p.logger.Debug().
		Str("message_id", messageID).
		Str("requested_at", payload.RequestedAt).
		Int("removed", report.Removed).
		Msg("sweep task done")
	return nil
}
