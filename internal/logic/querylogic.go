package logic

import (
	"context"
	"errors"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/internal/svc"
	"pricesync/internal/types"
	"pricesync/pkg/market"
)

// ErrNotRecorded is returned when no run summary is available.
var ErrNotRecorded = errors.New("logic: no sync run recorded")

type QueryLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewQueryLogic(ctx context.Context, svcCtx *svc.ServiceContext) *QueryLogic {
	return &QueryLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Health checks every provider and the store.
func (l *QueryLogic) Health() *types.HealthResponse {
	resp := &types.HealthResponse{
		Providers: l.svcCtx.Orchestrator.Health(l.ctx),
		Store:     "memory",
	}
	storeOK := true
	if l.svcCtx.Pinger != nil {
		if err := l.svcCtx.Pinger.Ping(l.ctx); err != nil {
			l.Errorf("logic: store ping failed err=%v", err)
			resp.Store = "unreachable"
			storeOK = false
		} else {
			resp.Store = "ok"
		}
	}
	for _, p := range resp.Providers {
		if p.Healthy {
			resp.Healthy = storeOK
			break
		}
	}
	return resp
}

// Plan resolves what a sync would fetch without fetching.
func (l *QueryLogic) Plan(req *types.PlanRequest) (*types.PlanResponse, error) {
	symbols := splitSymbols(req.Symbols)
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	plans, err := l.svcCtx.Job.Plan(l.ctx, symbols, req.Force)
	if err != nil {
		return nil, err
	}
	resp := &types.PlanResponse{Plans: make([]types.PlanItem, 0, len(plans))}
	for _, p := range plans {
		item := types.PlanItem{
			Symbol:   p.Symbol,
			HasData:  p.HasData,
			UpToDate: p.UpToDate,
			Skipped:  p.Skipped,
			Windows:  make([]string, 0, len(p.Windows)),
		}
		if !p.Skipped {
			item.Start, item.End = market.FormatDay(p.Start), market.FormatDay(p.End)
		}
		for _, w := range p.Windows {
			item.Windows = append(item.Windows, w.String())
		}
		resp.Plans = append(resp.Plans, item)
	}
	return resp, nil
}

// Coverage reports stored date bounds per symbol.
func (l *QueryLogic) Coverage(req *types.CoverageRequest) (*types.CoverageResponse, error) {
	rows, err := l.svcCtx.History.Coverage(l.ctx, splitSymbols(req.Symbols))
	if err != nil {
		return nil, err
	}
	resp := &types.CoverageResponse{Symbols: make([]types.CoverageItem, 0, len(rows))}
	for _, c := range rows {
		item := types.CoverageItem{Symbol: c.Symbol, Rows: c.Rows}
		if c.Rows > 0 {
			item.First, item.Last = market.FormatDay(c.First), market.FormatDay(c.Last)
		}
		resp.Symbols = append(resp.Symbols, item)
	}
	return resp, nil
}

func splitSymbols(s string) []string {
	return market.NormalizeSymbols(strings.Split(s, ","))
}
