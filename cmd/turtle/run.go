package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/newthinker/turtle/internal/app"
	"github.com/newthinker/turtle/internal/backtest"
	"github.com/newthinker/turtle/internal/core"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runFrom          string
	runTo            string
	runToday         string
	runInstruments   []string
	runAll           bool
	runConcurrency   int
	runDeterministic bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest",
	Long: `Run the configured breakout strategy over historical data.
Flags override the backtest section of the config file.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	runCmd.Flags().StringVar(&runFrom, "from", "", "start date YYYY-MM-DD or YYYYMMDD")
	runCmd.Flags().StringVar(&runTo, "to", "", "end date YYYY-MM-DD or YYYYMMDD")
	runCmd.Flags().StringVar(&runToday, "today", "", "date whose trades are logged separately")
	runCmd.Flags().StringSliceVar(&runInstruments, "instruments", nil, "comma-separated instrument codes")
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every listed instrument")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "parallel simulators (0 = one per CPU)")
	runCmd.Flags().BoolVar(&runDeterministic, "deterministic", false, "run instruments one at a time in sorted order")

	rootCmd.AddCommand(runCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	flags := cmd.Flags()
	if flags.Changed("from") {
		cfg.Backtest.From = runFrom
	}
	if flags.Changed("to") {
		cfg.Backtest.To = runTo
	}
	if flags.Changed("today") {
		cfg.Backtest.Today = runToday
	}
	if flags.Changed("instruments") {
		cfg.Backtest.Instruments = runInstruments
		cfg.Backtest.All = false
	}
	if flags.Changed("all") {
		cfg.Backtest.All = runAll
	}
	if flags.Changed("concurrency") {
		cfg.Backtest.Concurrency = runConcurrency
	}
	if flags.Changed("deterministic") {
		cfg.Backtest.Deterministic = runDeterministic
	}

	rc, err := cfg.RunConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := a.Run(ctx, rc)
	if res != nil {
		printResult(cmd.OutOrStdout(), res)
	}
	if err != nil {
		log.Error("backtest failed", zap.Error(err))
		return err
	}
	return nil
}

func printResult(out io.Writer, res *backtest.Result) {
	fmt.Fprintln(out, "=== turtle backtest ===")
	fmt.Fprintf(out, "Run:      %s (%s)\n", res.RunID, res.Status)
	fmt.Fprintf(out, "Period:   %s to %s\n", res.Config.From.Format(core.DateLayout), res.Config.To.Format(core.DateLayout))
	fmt.Fprintf(out, "Elapsed:  %s\n", res.Elapsed)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTRUMENT\tDAYS\tOPENS\tCLOSES\tHELD\tWIN%\tPNL")
	for _, o := range res.Instruments {
		s := o.Summary
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.1f\t%s\n",
			o.Instrument, o.TradingDays, s.Opens, s.Closes, s.OpenPositions(), s.WinRate(), s.RealizedPnL.StringFixed(2))
	}
	w.Flush()

	for _, f := range res.Failed {
		fmt.Fprintf(out, "FAILED %s: %s\n", f.Instrument, f.Error)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Trades:        %d (win rate %.1f%%)\n", res.Stats.TotalTrades, res.Stats.WinRate)
	fmt.Fprintf(out, "Realized PnL:  %s\n", res.Summary.RealizedPnL.StringFixed(2))
	fmt.Fprintf(out, "Profit factor: %.2f\n", res.Stats.ProfitFactor)
	fmt.Fprintf(out, "Max drawdown:  %.2f%%\n", res.Stats.MaxDrawdown)
	fmt.Fprintf(out, "Sharpe:        %.2f\n", res.Stats.SharpeRatio)
	if res.Config.UseCapital {
		fmt.Fprintf(out, "Capital:       %s (%+.2f%%)\n", res.Ledger.TotalCapital.StringFixed(2), res.CapitalReturn)
	}
}
