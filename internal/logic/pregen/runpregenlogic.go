package pregen

import (
	"context"

	"github.com/ttsblind/pregen/internal/logging"
	"github.com/ttsblind/pregen/internal/pregen"
	"github.com/ttsblind/pregen/internal/svc"
	"github.com/ttsblind/pregen/internal/types"
)

type RunPregenLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// Run one pre-generation batch
func NewRunPregenLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RunPregenLogic {
	return &RunPregenLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *RunPregenLogic) RunPregen(req *types.PregenRequest) (*pregen.Summary, error) {
	l.Infof("Pre-generation triggered: max=%d language=%q", req.Max, req.Language)

	summary, err := l.svcCtx.Pregen.Run(l.ctx, req.Max, req.Language)
	if err != nil {
		l.Errorf("Pre-generation run failed: %v", err)
		return nil, err
	}

	l.Infof("Pre-generation finished: attempted=%d succeeded=%d failed=%d skipped=%d partial=%t",
		summary.Attempted, summary.Succeeded, summary.Failed, summary.Skipped, summary.Partial)
	return summary, nil
}

// Clamp applies the configured default and ceiling to a requested batch size.
// requested < 0 means the caller did not ask for a size.
func Clamp(requested, defaultMax, limit int) int {
	if requested < 0 {
		requested = defaultMax
	}
	if limit > 0 && requested > limit {
		return limit
	}
	return requested
}
