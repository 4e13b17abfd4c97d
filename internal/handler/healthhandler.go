package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/starsarenaorg/arena-perps-agent-cli/internal/svc"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
)

type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	Stream string `json:"stream,omitempty"`
}

// HealthHandler reports 503 once the trader has stopped.
func HealthHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := svcCtx.Trader.Status()
		resp := HealthResponse{Status: "ok", State: st.State, Stream: st.StreamState}
		if st.State == copytrade.StateStopped {
			resp.Status = "stopped"
			httpx.WriteJsonCtx(r.Context(), w, http.StatusServiceUnavailable, resp)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
