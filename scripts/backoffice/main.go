package main

import (
	"os"

	"github.com/lancer-kit/uwe/v2"
	"github.com/lancer-kit/uwe/v2/presets/api"
	"github.com/rs/zerolog"

	"github.com/alan14500171/stock/metrics"
)

const WorkerAPIServer = "backoffice_api_server"

func main() {
	cfg := getConfig()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().
		Str("app", "backoffice-stub").
		Timestamp().
		Logger()

	if cfg.Monitoring.Metrics {
		metrics.Init(metrics.CollectorOpts{Namespace: "backoffice_stub"})
		metrics.RegisterGauges(
			mkeyLogins,
			mkeyLoginRejections,
			mkeyAuthRejections,
			mkeyStockRequests,
			mkeyTransactionRequests,
		)
	}

	chief := uwe.NewChief()
	chief.UseDefaultRecover()
	chief.SetEventHandler(func(event uwe.Event) {
		var level zerolog.Level
		switch event.Level {
		case uwe.LvlFatal, uwe.LvlError:
			level = zerolog.ErrorLevel
		case uwe.LvlInfo:
			level = zerolog.InfoLevel
		default:
			level = zerolog.WarnLevel
		}

		logger.WithLevel(level).Fields(event.Fields).Msg(event.Message)
	})

	server := api.NewServer(cfg.API,
		getRouter(logger.With().Str("worker", WorkerAPIServer).Logger(), cfg))
	chief.AddWorker(WorkerAPIServer, server)
	chief.Run()
}
