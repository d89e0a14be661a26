// Command venue runs the full simulated trading venue: a matching engine
// driven by an execution message engine, a risk message engine gating
// commands ahead of it, an event-sourced cache persisting every mutation,
// an HTTP/WebSocket gateway, and an optional bot swarm generating order
// flow.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/cache"
	"github.com/troubladore/venuecore/config"
	"github.com/troubladore/venuecore/execution"
	"github.com/troubladore/venuecore/logging"
	"github.com/troubladore/venuecore/matching"
	"github.com/troubladore/venuecore/matching/fillmodel"
	"github.com/troubladore/venuecore/persist"
	"github.com/troubladore/venuecore/risk"
	"github.com/troubladore/venuecore/sim"
	"github.com/troubladore/venuecore/store"
	"github.com/troubladore/venuecore/transport"
)

func main() {
	cfg := config.LoadFromEnv("")

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pebbleStore, err := store.OpenPebbleStore(cfg.StorePath)
	if err != nil {
		log.Fatal("open pebble store", zap.Error(err))
	}
	defer pebbleStore.Close()
	eventCache := cache.New(pebbleStore, log)

	fm := fillmodel.New(fillmodel.Config{
		ProbFillAtLimit: cfg.FillModel.ProbFillAtLimit,
		ProbSlippage:    cfg.FillModel.ProbSlippage,
		RandomSeed:      cfg.FillModel.RandomSeed,
	})
	account := matching.NewAccount(cfg.AccountID, cfg.StartingCurrency, book.Price(cfg.StartingCash))

	execEngine := execution.New(cfg.ExecutionQueueCapacity, log.Named("execution"))
	exchange := matching.New(account, fm, execEngine.OnExchangeEvent, log.Named("exchange"))
	execEngine.Attach(exchange)

	if err := exchange.RegisterInstrument(matching.Instrument{
		ID:                "BTC-USD",
		Currency:          cfg.StartingCurrency,
		BookLevel:         book.L2,
		PricePrecision:    2,
		SizePrecision:     6,
		CommissionRateBps: 10,
	}); err != nil {
		log.Fatal("register instrument", zap.Error(err))
	}

	riskEngine := risk.New(cfg.RiskQueueCapacity, execEngine.Forward, log.Named("risk"))
	riskEngine.SetLimits("BTC-USD", risk.Limits{MaxOrderNotional: 10_000_000_00, MaxPosition: 1_000_000})

	persistSink := persist.New(eventCache, log.Named("persist"))
	execEngine.AddCommandSink(persistSink.HandleCommand)
	execEngine.AddSink(persistSink.HandleEvent)
	execEngine.AddSink(func(evt any) {
		if state, ok := evt.(matching.AccountState); ok {
			riskEngine.Notify(state)
		}
	})
	riskEngine.AddSink(persistSink.HandleEvent)

	transportServer := transport.New(riskEngine, execEngine, cfg.CORSOrigin, log.Named("transport"))
	execEngine.AddSink(transportServer.PublishEvent)
	riskEngine.AddSink(transportServer.PublishEvent)

	var supervisor *sim.Supervisor
	if cfg.EnableSim {
		supervisor = sim.NewSupervisor(riskEngine, execEngine, "BTC-USD", 1, cfg.SimOrderInterval, log.Named("sim"))
		execEngine.AddSink(supervisor.HandleEvent)
	}

	riskEngine.Start()
	execEngine.Start()
	defer riskEngine.Stop()
	defer execEngine.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gaugeStop := make(chan struct{})
	defer close(gaugeStop)
	riskEngine.StartQueueGauge(cfg.QueueGaugeInterval, gaugeStop)
	execEngine.StartQueueGauge(cfg.QueueGaugeInterval, gaugeStop)

	if supervisor != nil {
		go supervisor.Start(ctx)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: transportServer.Handler()}
	go func() {
		log.Info("venue listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
