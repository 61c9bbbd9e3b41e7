package participant

import (
	"context"

	"github.com/mirkobrombin/go-cachetx/pkg/mutation"
	"go.uber.org/zap"
)

// broadcast publishes each key touched by a flushed batch once, so peers
// holding an in-process copy drop it. Failures never affect the commit.
func (p *Participant) broadcast(ctx context.Context, flushed []mutation.Mutation) {
	if p.publish == nil {
		return
	}
	for _, key := range mutation.Keys(flushed) {
		if err := p.publish(ctx, key); err != nil {
			p.logger.Warn("failed to publish invalidation", zap.String("key", key), zap.Error(err))
		}
	}
}
