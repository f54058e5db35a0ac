package logic

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/internal/svc"
	"pricesync/internal/types"
	"pricesync/pkg/market"
	"pricesync/pkg/syncjob"
)

// ErrNoSymbols is returned when a sync request names no symbols.
var ErrNoSymbols = errors.New("logic: at least one symbol is required")

type SyncLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSyncLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SyncLogic {
	return &SyncLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// SyncSymbols runs a targeted sync, or a reseed when clearExisting is set.
func (l *SyncLogic) SyncSymbols(req *types.SyncRequest) (*syncjob.SyncSummary, error) {
	symbols := market.NormalizeSymbols(req.Symbols)
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	l.Infof("logic: sync symbols=%v force=%t clear=%t", symbols, req.Force, req.ClearExisting)
	if req.ClearExisting {
		return l.svcCtx.Job.Reseed(l.ctx, symbols)
	}
	return l.svcCtx.Job.SyncSymbols(l.ctx, symbols, req.Force)
}

// SyncAll runs over every active symbol.
func (l *SyncLogic) SyncAll(req *types.SyncAllRequest) (*syncjob.SyncSummary, error) {
	l.Infof("logic: sync all yearsBack=%d", req.YearsBack)
	return l.svcCtx.Job.SyncAll(l.ctx, syncjob.SyncAllOptions{YearsBack: req.YearsBack})
}

// LastSummary returns the last recorded run. Without Redis or a journal
// there is nothing recorded.
func (l *SyncLogic) LastSummary() (*syncjob.SyncSummary, error) {
	if l.svcCtx.LastRun == nil {
		return nil, ErrNotRecorded
	}
	return l.svcCtx.LastRun.LastSummary(l.ctx)
}
