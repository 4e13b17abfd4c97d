package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/starsarenaorg/arena-perps-agent-cli/internal/svc"
)

type errorResponse struct {
	Error string `json:"error"`
}

// DriftHandler compares both accounts on demand. Upstream failures map to 502.
func DriftHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svcCtx.Drift(r.Context())
		if err != nil {
			logx.WithContext(r.Context()).Errorf("drift report: %v", err)
			httpx.WriteJsonCtx(r.Context(), w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		httpx.OkJsonCtx(r.Context(), w, report)
	}
}
