package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"quantsystem/cmd/executor"
	"quantsystem/cmd/pipeline"
	"quantsystem/src/app"
	"quantsystem/src/controller"
	"quantsystem/src/logging"
	"quantsystem/src/model"
	"quantsystem/src/paper"
	"quantsystem/src/server"
	"quantsystem/src/utils"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "quant"
	app.Usage = "The quantsystem command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		fetchCMD,
		analyzeCMD,
		schedulerCMD,
		orderCMD,
		serveCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var symbolsFlag = cli.StringFlag{
	Name:  "symbols",
	Usage: "comma separated symbols, defaults to SYMBOLS",
}

var (
	fetchCMD = cli.Command{
		Name:   "fetch",
		Usage:  "download bars",
		Action: fetchAction,
		Flags: []cli.Flag{
			symbolsFlag,
			cli.StringFlag{Name: "timeframe", Value: "1d", Usage: "1d or 1h"},
		},
		Description: `Fetch bars for every configured symbol from the last stored bar onward`,
	}
	analyzeCMD = cli.Command{
		Name:   "analyze",
		Usage:  "run the analysis pipeline and print the ranking",
		Action: analyzeAction,
		Flags: []cli.Flag{
			symbolsFlag,
			cli.StringFlag{Name: "date", Usage: "analysis date YYYY-MM-DD, defaults to today"},
			cli.IntFlag{Name: "top", Usage: "rows to print, defaults to ANALYZE_TOP_N"},
		},
		Description: `Compute indicators, score, rank and write signals`,
	}
	schedulerCMD = cli.Command{
		Name:        "scheduler",
		Usage:       "run the market-hours scheduler",
		Action:      schedulerAction,
		Description: `Run snapshot, sell monitor and signal execution on a cron schedule`,
	}
	orderCMD = cli.Command{
		Name:   "order",
		Usage:  "place a manual order",
		Action: orderAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "symbol", Usage: "symbol to trade"},
			cli.StringFlag{Name: "side", Value: model.OrderSideBuy, Usage: "BUY or SELL"},
			cli.StringFlag{Name: "type", Value: model.OrderTypeMarket, Usage: "MARKET or LIMIT"},
			cli.Int64Flag{Name: "qty", Usage: "quantity in shares"},
			cli.StringFlag{Name: "price", Usage: "limit price"},
			cli.StringFlag{Name: "reason", Value: "manual order from cli"},
		},
		Description: `Place one order through the configured paper engine`,
	}
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the dashboard API",
		Action:      serveAction,
		Description: `Serve the read-mostly dashboard API`,
	}
)

func setup(name string) (*logrus.Entry, *app.Context, error) {
	log, err := logging.Setup(logging.GetConfig(), "quant")
	if err != nil {
		return nil, nil, err
	}
	log = log.WithField("cmd", name)

	ac, err := app.Open(app.LoadConfig(), log)
	if err != nil {
		log.WithError(err).Error("Failed to build application context")
		return nil, nil, err
	}
	return log, ac, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func symbols(c *cli.Context, ac *app.Context) []string {
	if raw := c.String("symbols"); raw != "" {
		return controller.NormalizeSymbols(strings.Split(raw, ","))
	}
	return ac.Symbols()
}

func fetchAction(c *cli.Context) error {
	log, ac, err := setup("fetch")
	if err != nil {
		return err
	}
	defer ac.Close()

	ctx, stop := signalContext()
	defer stop()

	p := &pipeline.Pipeline{Log: log, App: ac, Symbols: symbols(c, ac), Out: os.Stdout}
	log.WithField("symbols", len(p.Symbols)).Info("Starting fetch")
	return p.Fetch(ctx, c.String("timeframe"))
}

func analyzeAction(c *cli.Context) error {
	log, ac, err := setup("analyze")
	if err != nil {
		return err
	}
	defer ac.Close()

	asOf := time.Now()
	if raw := c.String("date"); raw != "" {
		asOf, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", raw, err)
		}
	}
	top := c.Int("top")
	if top <= 0 {
		top = ac.Config.Analyzer.TopN
	}

	ctx, stop := signalContext()
	defer stop()

	p := &pipeline.Pipeline{Log: log, App: ac, Symbols: symbols(c, ac), Out: os.Stdout}
	_, err = p.Analyze(ctx, utils.ResetTime(asOf, "day"), top)
	return err
}

func schedulerAction(_ *cli.Context) error {
	log, err := logging.Setup(logging.GetConfig(), "quant")
	if err != nil {
		return err
	}
	log.Info("Starting scheduler CMD")

	e := &executor.Executor{Log: log.WithField("cmd", "scheduler")}
	if err := e.Start(); err != nil {
		log.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func orderAction(c *cli.Context) error {
	log, ac, err := setup("order")
	if err != nil {
		return err
	}
	defer ac.Close()

	req := paper.OrderRequest{
		Symbol:    controller.NormalizeSymbol(c.String("symbol")),
		Market:    ac.Config.Analyzer.Market,
		Side:      strings.ToUpper(c.String("side")),
		OrderType: strings.ToUpper(c.String("type")),
		Quantity:  c.Int64("qty"),
		Reason:    c.String("reason"),
	}
	if raw := c.String("price"); raw != "" {
		req.Price, err = decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid --price %q: %w", raw, err)
		}
	}

	ctx, stop := signalContext()
	defer stop()

	res, err := ac.Trader.PlaceOrder(ctx, req)
	if res != nil {
		o := res.Order
		fmt.Fprintf(os.Stdout, "order %d %s %s %d %s status=%s\n", o.ID, o.Side, o.Symbol, o.Quantity, o.OrderType, o.Status)
	}
	if err != nil {
		log.WithError(err).Warn("order not filled")
		return err
	}
	return nil
}

func serveAction(_ *cli.Context) error {
	_, ac, err := setup("serve")
	if err != nil {
		return err
	}
	defer ac.Close()

	ctx, stop := signalContext()
	defer stop()

	ac.StartStream(ctx)
	return server.StartServer(ctx, ac, server.GetConfig())
}
