package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/newthinker/turtle/internal/app"
	"github.com/newthinker/turtle/internal/core"
	"github.com/spf13/cobra"
)

var tradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List the journaled trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  listTrades,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List journaled backtest runs",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

func init() {
	rootCmd.AddCommand(tradesCmd)
	rootCmd.AddCommand(runsCmd)
}

func openApp() (*app.App, func(), error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, func() { a.Close(); log.Sync() }, nil
}

func listTrades(cmd *cobra.Command, args []string) error {
	a, done, err := openApp()
	if err != nil {
		return err
	}
	defer done()

	events, err := a.Trades(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no trades journaled for run %s", args[0])
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tINSTRUMENT\tACTION\tDIRECTION\tPRICE\tVOLUME\tPNL")
	for _, ev := range events {
		pnl := ""
		if ev.IsClose() {
			pnl = ev.PnL.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Date.Format(core.DateLayout), ev.Instrument, ev.Action, ev.Direction,
			ev.Price.String(), ev.Volume.String(), pnl)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	a, done, err := openApp()
	if err != nil {
		return err
	}
	defer done()

	runs, err := a.Runs(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tFROM\tTO\tINSTRUMENTS\tSTATUS\tCAPITAL")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"),
			r.From.Format(core.DateLayout), r.To.Format(core.DateLayout),
			r.Instruments, r.Status, r.FinalCapital.StringFixed(2))
	}
	return w.Flush()
}

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Print an archived run report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, done, err := openApp()
		if err != nil {
			return err
		}
		defer done()

		res, err := a.Report(context.Background(), args[0])
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
