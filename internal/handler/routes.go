package handler

import (
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/rest"

	"pricesync/internal/svc"
)

// syncTimeout bounds admin sync requests, which may wait out provider quotas
// for a long time.
const syncTimeout = 6 * time.Hour

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/health",
				Handler: HealthHandler(serverCtx),
			},
		},
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/sync",
				Handler: SyncSymbolsHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/sync/all",
				Handler: SyncAllHandler(serverCtx),
			},
		},
		rest.WithPrefix("/admin"),
		rest.WithTimeout(syncTimeout),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/sync/last",
				Handler: LastSummaryHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/sync/plan",
				Handler: PlanHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/coverage",
				Handler: CoverageHandler(serverCtx),
			},
		},
		rest.WithPrefix("/admin"),
	)
}
