package svc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"pricesync/internal/cache"
	"pricesync/internal/config"
	"pricesync/internal/export"
	marketpersist "pricesync/internal/persistence/market"
	"pricesync/internal/persistence/memstore"
	"pricesync/pkg/confkit"
	"pricesync/pkg/fallback"
	"pricesync/pkg/journal"
	marketpkg "pricesync/pkg/market"
	_ "pricesync/pkg/market/providers/alphavantage"
	_ "pricesync/pkg/market/providers/twelvedata"
	_ "pricesync/pkg/market/providers/yahoo"
	syncpkg "pricesync/pkg/syncjob"
)

// openTimeout bounds startup connectivity checks.
const openTimeout = 30 * time.Second

// SummaryReader returns the latest recorded run.
type SummaryReader interface {
	LastSummary(ctx context.Context) (*syncpkg.SyncSummary, error)
}

// Pinger is implemented by stores with a remote backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ServiceContext struct {
	Config config.Config

	MarketConfig *marketpkg.Config
	SyncConfig   *syncpkg.Config
	Providers    []marketpkg.Provider
	Orchestrator *fallback.Orchestrator

	// Store is Postgres when a DSN is configured, otherwise in-memory.
	Store   marketpkg.Store
	History marketpkg.HistoryReader
	Pinger  Pinger

	Redis    *redis.Redis
	TTL      cache.TTLSet
	Recorder *cache.SyncRecorder
	Journal  *journal.Writer
	// LastRun serves the latest summary, from Redis when configured and the
	// journal otherwise. Nil when neither is set.
	LastRun SummaryReader
	Exporter *export.Exporter

	Job *syncpkg.Job
}

func MustNewServiceContext(c config.Config) *ServiceContext {
	svc, err := NewServiceContext(c)
	if err != nil {
		logx.Must(err)
	}
	return svc
}

func NewServiceContext(c config.Config) (*ServiceContext, error) {
	svc := &ServiceContext{
		Config:     c,
		SyncConfig: c.SyncConfig(),
		TTL:        cache.NewTTLSet(c.TTL),
	}

	// Market config falls back to etc/market.yaml at the project root.
	marketCfg := c.Market.Value
	if marketCfg == nil {
		path, err := confkit.ProjectPath("etc/market.yaml")
		if err != nil {
			return nil, fmt.Errorf("locate market config: %w", err)
		}
		if marketCfg, err = marketpkg.LoadConfig(path); err != nil {
			return nil, fmt.Errorf("load market config: %w", err)
		}
	}
	chain, err := marketCfg.BuildChain()
	if err != nil {
		return nil, fmt.Errorf("build market providers: %w", err)
	}
	orchestrator, err := fallback.New(chain, svc.SyncConfig.OrchestratorOptions()...)
	if err != nil {
		return nil, fmt.Errorf("build fallback chain: %w", err)
	}
	svc.MarketConfig = marketCfg
	svc.Providers = chain
	svc.Orchestrator = orchestrator

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if c.Postgres.DSN != "" {
		store, err := marketpersist.Open(ctx, c.Postgres)
		if err != nil {
			return nil, err
		}
		svc.Store, svc.History, svc.Pinger = store, store, store
	} else {
		logx.Info("svc: postgres not configured, using in-memory store")
		store := memstore.New()
		svc.Store, svc.History = store, store
	}

	opts := []syncpkg.Option{}
	var recorders syncpkg.Recorders
	if strings.TrimSpace(c.Journal.Dir) != "" {
		w, err := journal.NewWriter(c.Journal.Dir)
		if err != nil {
			return nil, err
		}
		svc.Journal, svc.LastRun = w, w
		recorders = append(recorders, w)
	}
	if strings.TrimSpace(c.Redis.Host) != "" {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		svc.Redis = rds
		svc.Recorder = cache.NewSyncRecorder(cache.NewNode(rds), svc.TTL)
		svc.LastRun = svc.Recorder
		recorders = append(recorders, svc.Recorder)
		opts = append(opts, syncpkg.WithRunGuard(cache.NewRunLock(rds, svc.TTL)))
	} else {
		opts = append(opts, syncpkg.WithRunGuard(&cache.LocalLock{}))
	}
	switch len(recorders) {
	case 0:
	case 1:
		opts = append(opts, syncpkg.WithRecorder(recorders[0]))
	default:
		opts = append(opts, syncpkg.WithRecorder(recorders))
	}

	exporter, ok, err := export.New(c.Export)
	if err != nil {
		return nil, err
	}
	if ok {
		svc.Exporter = exporter
		opts = append(opts, syncpkg.WithExporter(exporter))
	}

	svc.Job = syncpkg.New(svc.Store, orchestrator, svc.SyncConfig, opts...)
	return svc, nil
}

// ProviderNames lists the fallback chain in priority order.
func (s *ServiceContext) ProviderNames() []string {
	return s.Orchestrator.Providers()
}
