package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"alpha_portfolios/internal/models"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "alpha_portfolios",
		Short: "Multi-portfolio trading orchestrator",
		Long: `alpha_portfolios runs several independently configured Alpaca portfolios
side by side. Each cycle researches the target symbols, asks the decision model
for a verdict per portfolio, sizes and places orders, and enforces stop-loss,
take-profit and drawdown limits.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStepCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newPortfoliosCmd())
	return root
}

// withApp builds the application for one command invocation. The context is
// cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug, _ := cmd.Flags().GetBool("debug")
	a, err := newApp(ctx, debug)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newStepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step [SYMBOLS...]",
		Short: "Run one trading cycle",
		Long: `Run one trading cycle over the given symbols, or TARGET_SYMBOLS when none are
given. "auto" selects trending symbols.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			buyOnly, _ := cmd.Flags().GetBool("buy-only")
			return runCycle(cmd, args, buyOnly)
		},
	}
	cmd.Flags().Bool("buy-only", false, "Only act on buy decisions")
	return cmd
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [SYMBOLS...]",
		Short: "Run one buy-only cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycle(cmd, args, true)
		},
	}
}

func runCycle(cmd *cobra.Command, args []string, buyOnly bool) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.mgr.Len() == 0 {
			return fmt.Errorf("no portfolios configured, add one with 'portfolios add'")
		}
		symbols := args
		if len(symbols) == 0 {
			symbols = a.cfg.TargetSymbols
		}
		cycle := a.mgr.Step
		if buyOnly {
			cycle = a.mgr.ScanBuys
		}
		report := cycle(context.WithoutCancel(ctx), symbols)
		fmt.Println(renderCycle(report))
		return nil
	})
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every portfolio with positions and performance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				a.mgr.RefreshBenchmark(ctx)
				views := a.mgr.Snapshots(ctx)
				if len(views) == 0 {
					fmt.Println(mutedStyle.Render("No portfolios configured."))
					return nil
				}
				for _, v := range views {
					fmt.Println(renderView(v))
				}
				return nil
			})
		},
	}
}

func newPortfoliosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolios",
		Short: "Manage portfolio definitions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured portfolios",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				fmt.Println(renderDefinitions(a.mgr.Portfolios()))
				return nil
			})
		},
	})

	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def := models.PortfolioDefinition{Name: args[0]}
			def.APIKey, _ = cmd.Flags().GetString("api-key")
			def.SecretKey, _ = cmd.Flags().GetString("secret-key")
			def.BaseURL, _ = cmd.Flags().GetString("base-url")
			def.StrategyType, _ = cmd.Flags().GetString("strategy")
			def.CustomPrompt, _ = cmd.Flags().GetString("prompt")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.mgr.AddPortfolio(def)
				if err != nil {
					return err
				}
				fmt.Println(okStyle.Render(fmt.Sprintf("Added %s (%s)", p.Name(), p.Strategy())))
				return nil
			})
		},
	}
	add.Flags().String("api-key", "", "Alpaca API key")
	add.Flags().String("secret-key", "", "Alpaca secret key")
	add.Flags().String("base-url", "https://paper-api.alpaca.markets", "Alpaca trading endpoint")
	add.Flags().String("strategy", "default", "Strategy: momentum, mean_reversion, value or default")
	add.Flags().String("prompt", "", "Custom prompt template using {strategy}, {portfolio} and {research}")
	_ = add.MarkFlagRequired("api-key")
	_ = add.MarkFlagRequired("secret-key")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.mgr.RemovePortfolio(args[0]); err != nil {
					return err
				}
				fmt.Println(okStyle.Render("Removed " + args[0]))
				return nil
			})
		},
	})
	return cmd
}
