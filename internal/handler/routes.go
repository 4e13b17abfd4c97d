package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"github.com/starsarenaorg/arena-perps-agent-cli/internal/svc"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/healthz",
				Handler: HealthHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/status",
				Handler: StatusHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/drift",
				Handler: DriftHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/metrics",
				Handler: serverCtx.Metrics.Handler().ServeHTTP,
			},
		},
	)
}
