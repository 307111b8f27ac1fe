package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"alpha_portfolios/internal/api"
	"alpha_portfolios/internal/journal"
	"alpha_portfolios/internal/manager"
	"alpha_portfolios/internal/notify"
	"alpha_portfolios/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run cycles on schedule and serve the API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, serve)
		},
	}
}

// serve wires the long-running components: journal and notifier on the
// event bus, the optional price stream, the HTTP API and the cycle
// scheduler. It returns after SIGINT/SIGTERM once everything has stopped.
func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	g, gctx := errgroup.WithContext(ctx)

	var jrnl api.Journal
	if cfg.JournalPath != "" {
		j, err := journal.Open(ctx, cfg.JournalPath, a.log)
		if err != nil {
			return err
		}
		defer j.Close()
		ch, cancel := a.bus.Subscribe(256)
		defer cancel()
		g.Go(func() error {
			j.Run(gctx, ch)
			return nil
		})
		jrnl = j
	}

	tg := notify.NewTelegram(notify.TelegramBaseURL, cfg.TelegramBotToken, cfg.TelegramChatID, cfg.ExternalTimeout, a.log)
	if tg.Enabled() {
		ch, cancel := a.bus.Subscribe(64)
		defer cancel()
		g.Go(func() error {
			tg.Run(gctx, ch)
			return nil
		})
	}

	if a.prices != nil {
		symbols := streamSymbols(cfg.TargetSymbols)
		creds, ok := a.streamCredentials()
		switch {
		case !ok:
			a.log.Warn().Msg("STREAM_PRICES set but no portfolio credentials to stream with")
		case len(symbols) == 0:
			a.log.Warn().Msg("STREAM_PRICES needs explicit TARGET_SYMBOLS, streaming disabled")
		default:
			g.Go(func() error { return a.prices.Stream(gctx, creds, symbols) })
		}
	}

	srv := api.New(api.Options{
		Addr:    cfg.HTTPAddr,
		Manager: a.mgr,
		Symbols: cfg.TargetSymbols,
		Events:  a.bus,
		Journal: jrnl,
		History: a.history,
		Timeout: cfg.ExternalTimeout,
		Logger:  a.log,
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	sched := scheduler.New(gctx, a.log)
	cycle := scheduler.JobFunc{JobName: "trading-cycle", Fn: func(ctx context.Context) error {
		// A started cycle runs to completion; shutdown waits for it.
		report := a.mgr.Step(context.WithoutCancel(ctx), cfg.TargetSymbols)
		a.log.Info().Str("cycle", report.ID).Int("pairs", len(report.Outcomes)).Int("failed", failedPairs(report)).Msg("Scheduled cycle done")
		return nil
	}}
	if err := sched.AddJob(cfg.CycleSchedule, cycle); err != nil {
		return err
	}
	sched.Start()
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		// Closing the bus ends the journal and notifier loops.
		a.bus.Close()
		return nil
	})

	a.log.Info().Int("portfolios", a.mgr.Len()).Str("schedule", cfg.CycleSchedule).Str("addr", cfg.HTTPAddr).Msg("alpha_portfolios running")
	g.Go(func() error {
		// Run once immediately on start.
		return sched.RunNow(cycle)
	})

	err := g.Wait()
	a.log.Info().Msg("Shut down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// streamSymbols returns the explicit symbols of a target list; trending
// selection changes every cycle and cannot be streamed.
func streamSymbols(targets []string) []string {
	var out []string
	for _, s := range targets {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !strings.EqualFold(s, manager.AutoSymbols) {
			out = append(out, s)
		}
	}
	return out
}

func failedPairs(r manager.CycleReport) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Error != "" {
			n++
		}
	}
	return n
}
