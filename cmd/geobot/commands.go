package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/robfig/cron/v3"

	"github.com/alejandrodnm/geobot/internal/adapters/onchain"
	"github.com/alejandrodnm/geobot/internal/domain"
)

func cmdRun(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	name := fs.String("strategy", "base", "strategy or group name")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	return runCycle(ctx, app, *name)
}

func runCycle(ctx context.Context, app *App, name string) error {
	strategies, err := app.catalog.Resolve(name)
	if err != nil {
		return err
	}
	slog.Info("geobot: cycle start", "target", name, "strategies", len(strategies))

	summary, err := app.runner.Run(ctx, strategies)
	if err != nil {
		return err
	}
	app.console.PrintSummary(summary)
	if n := summary.Failures(); n > 0 {
		slog.Warn("geobot: strategies failed", "count", n)
	}
	return nil
}

func cmdLive(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		return usageError("live: missing subcommand (status|pending|cleanup|execute|approve)")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "status":
		st, err := app.gateway.Status(ctx, app.liveCfg)
		if err != nil {
			return err
		}
		app.console.PrintLiveStatus(st)
		return nil

	case "pending":
		trades, err := app.gateway.Pending(ctx)
		if err != nil {
			return err
		}
		app.console.PrintProposals(trades, time.Now())
		return nil

	case "cleanup":
		n, err := app.gateway.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d proposal(s) expired\n", n)
		return nil

	case "execute":
		return liveExecute(ctx, app, rest)

	case "approve":
		return liveApprove(ctx, app, rest)

	default:
		return usageError(fmt.Sprintf("live: unknown subcommand %q", sub))
	}
}

func liveExecute(ctx context.Context, app *App, ids []string) error {
	if len(ids) == 0 {
		return usageError("live execute: pass proposal ids or 'all'")
	}
	if !app.liveCfg.Enabled && !app.liveCfg.Shadow {
		return fmt.Errorf("%w: set LIVE_TRADING_ENABLED=true or LIVE_SHADOW_MODE=true", domain.ErrLiveDisabled)
	}
	if len(ids) == 1 && strings.EqualFold(ids[0], "all") {
		pending, err := app.gateway.PendingIDs(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No pending proposals.")
			return nil
		}
		ids = pending
	}

	exec, err := app.executor()
	if err != nil {
		return err
	}
	results, err := exec.Execute(ctx, ids)
	app.console.PrintExecution(results)
	return err
}

func liveApprove(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("live approve", flag.ContinueOnError)
	check := fs.Bool("check", false, "only report, do not send transactions")
	amount := fs.Float64("amount", 0, "USDC.e allowance to grant (0 = unlimited)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if app.cfg.API.PrivateKey == "" {
		return fmt.Errorf("POLY_PRIVATE_KEY is required")
	}

	approver, err := onchain.NewApprover(app.cfg.API.RPCURL, app.cfg.API.PrivateKey)
	if err != nil {
		return err
	}
	approver.WithAllowance(*amount)
	slog.Info("onchain: wallet", "address", approver.Address())

	var status []onchain.Approval
	if *check {
		status, err = approver.Check(ctx)
	} else {
		status, err = approver.EnsureApprovals(ctx)
	}
	printApprovals(status)
	return err
}

func printApprovals(status []onchain.Approval) {
	if len(status) == 0 {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Kind", "Spender", "Approved", "Allowance", "Tx")
	for _, st := range status {
		allowance := "-"
		if st.Kind == "erc20" {
			allowance = fmt.Sprintf("$%.2f", st.Allowance)
			if st.Allowance > 1e15 {
				allowance = "unlimited"
			}
		}
		table.Append(st.Kind, st.Spender, fmt.Sprintf("%v", st.Approved), allowance, st.TxHash)
	}
	table.Render()
}

func cmdClose(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("close", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	search := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if search == "" {
		return usageError("close: missing search text or market id")
	}

	strategies := app.catalog.Strategies()
	matches, err := app.paper.FindOpen(ctx, strategies, search)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("No open position matches %q.\n", search)
		return nil
	}
	for _, m := range matches {
		fmt.Printf("  [%s] %s %s @ %.3f $%.2f  %s\n", m.Strategy, m.Position.MarketID, m.Position.BetSide,
			m.Position.EntryPrice, m.Position.SizeUSD, domain.TruncateQuestion(m.Position.Question, m.Position.MarketID, 60))
	}

	if !*yes && !confirm(fmt.Sprintf("Close %d position(s) at a 50%% loss?", len(matches))) {
		fmt.Println("Aborted.")
		return nil
	}

	closed, err := app.paper.CloseManual(ctx, strategies, search)
	if err != nil {
		return err
	}
	var total float64
	for _, c := range closed {
		total += *c.Position.PnL
	}
	fmt.Printf("Closed %d position(s), PnL $%.2f\n", len(closed), total)
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func cmdStrategies(app *App) error {
	app.console.PrintStrategies(app.catalog.Strategies())

	names, members := app.catalog.Groups()
	fmt.Println("\nGroups:")
	for _, g := range names {
		fmt.Printf("  %-12s (%2d) %s\n", g, len(members[g]), strings.Join(members[g], ", "))
	}
	return nil
}

// cmdSchedule ejecuta ciclos según una expresión cron con segundos.
// Un ciclo que sigue corriendo hace que se salte el siguiente disparo.
func cmdSchedule(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	spec := fs.String("cron", app.cfg.Scan.Cron, "cron spec with seconds field")
	name := fs.String("strategy", "base", "strategy or group name")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if _, err := app.catalog.Resolve(*name); err != nil {
		return err
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(*spec, func() {
		if err := runCycle(ctx, app, *name); err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				slog.Warn("geobot: another cycle holds the lock, skipping")
				return
			}
			slog.Error("geobot: scheduled cycle failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule: invalid cron spec %q: %w", *spec, err)
	}

	slog.Info("geobot: scheduler started", "cron", *spec, "target", *name)
	c.Start()
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	slog.Info("geobot: scheduler stopped")
	return nil
}
