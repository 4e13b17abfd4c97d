package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
	"github.com/zeromicro/go-zero/rest"

	"github.com/starsarenaorg/arena-perps-agent-cli/internal/cli"
	"github.com/starsarenaorg/arena-perps-agent-cli/internal/config"
	"github.com/starsarenaorg/arena-perps-agent-cli/internal/handler"
	"github.com/starsarenaorg/arena-perps-agent-cli/internal/svc"
)

var (
	configFile = flag.String("f", "etc/copytrader.yaml", "the config file")
	driftOnly  = flag.Bool("drift", false, "print the position drift report and exit")
)

func main() {
	flag.Parse()
	os.Exit(run(*configFile, *driftOnly, os.Stdout))
}

// run returns the process exit code: 0 after a requested shutdown, 1 when
// startup fails or the fill stream gives up.
func run(path string, drift bool, out io.Writer) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "copytrader: %v\n", err)
		return 1
	}
	logx.MustSetup(cfg.Log)
	logx.DisableStat()
	cli.LogConfigSummary(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcCtx, err := svc.NewServiceContext(ctx, *cfg)
	if err != nil {
		logx.Errorf("copytrader: startup failed: %v", err)
		return 1
	}
	defer svcCtx.Close()

	if drift {
		report, err := svcCtx.Drift(ctx)
		if err != nil {
			logx.Errorf("copytrader: drift report: %v", err)
			return 1
		}
		if err := cli.RenderDrift(out, report); err != nil {
			logx.Errorf("copytrader: render drift report: %v", err)
			return 1
		}
		return 0
	}

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()
	handler.RegisterHandlers(server, svcCtx)
	threading.GoSafe(server.Start)
	logx.Infof("copytrader: status server at %s:%d", cfg.Host, cfg.Port)

	trader := svcCtx.Trader
	defer trader.Stop()
	if err := trader.Start(ctx); err != nil {
		logx.Errorf("copytrader: startup failed: %v", err)
		return 1
	}
	if err := trader.Run(ctx); err != nil {
		logx.Errorf("copytrader: %v", err)
		return 1
	}
	logx.Info("copytrader: shutdown complete")
	return 0
}
