package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vanshika/supplytrace/internal/config"
	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/ledger"
	"github.com/vanshika/supplytrace/internal/logging"
	"github.com/vanshika/supplytrace/internal/registry"
	"github.com/vanshika/supplytrace/internal/server"
	"github.com/vanshika/supplytrace/internal/service"
	"github.com/vanshika/supplytrace/internal/storage"
	"github.com/vanshika/supplytrace/internal/telemetry"
	"github.com/vanshika/supplytrace/internal/wire"
)

const usage = `usage: ledger <command> [flags]

commands:
  apply     replay a transaction stream (JSON lines) against the ledger
  submit    submit one transaction payload as a trader
  show      print a trader, commodity or purchase order
  chain     print a commodity's custody chain
  holdings  list the commodities a trader owns
  history   list committed transactions
  serve     run the health and metrics listener until interrupted
`

var errUsage = errors.New("invalid usage")

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   registry.Store
	metrics *prometheus.Registry
	svc     *service.SupplyChainService
	out     io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging).With("component", "ledger-cli")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("flushing traces failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.store.Close(context.Background()); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := storage.Open(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := ledger.NewMetrics(reg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	rt := ledger.New(store, ledger.WithLogger(logger), ledger.WithMetrics(metrics))
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: reg,
		svc:     service.NewSupplyChainService(rt, logger),
		out:     os.Stdout,
	}, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "apply":
		return a.withOps(ctx, func(ctx context.Context) error { return a.apply(ctx, args) })
	case "submit":
		return a.submit(ctx, args)
	case "show":
		return a.show(ctx, args)
	case "chain":
		return a.chain(ctx, args)
	case "holdings":
		return a.holdings(ctx, args)
	case "history":
		return a.history(ctx, args)
	case "serve":
		return a.serve(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func (a *app) apply(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	streamPath := fs.String("file", "", "transaction stream to replay (JSON lines)")
	datasetPath := fs.String("dataset", "", "optional dataset (JSON or YAML) to seed first")
	ratePerSecond := fs.Float64("rate", a.cfg.Ingest.RatePerSecond, "max transactions per second (0 = unlimited)")
	burst := fs.Int("burst", a.cfg.Ingest.Burst, "rate limiter burst")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *streamPath == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}

	if *datasetPath != "" {
		ds, err := wire.LoadDataset(*datasetPath)
		if err != nil {
			return err
		}
		ingestor := service.NewBulkIngestor(a.svc, a.cfg.Ingest.Workers, nil)
		if err := ingestor.Seed(ctx, ds); err != nil {
			return err
		}
		a.logger.Info("seeded dataset", "path", *datasetPath, "traders", len(ds.Traders), "commodities", len(ds.Commodities))
	}

	file, err := os.Open(*streamPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", *streamPath, err)
	}
	defer file.Close()

	report, err := a.svc.Replay(ctx, file, service.NewLimiter(*ratePerSecond, *burst))
	a.logger.Info("replay finished", "committed", report.Committed, "rejected", len(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(os.Stderr, "line %d (%s): %v\n", f.Line, f.Credential, f.Err)
	}
	return err
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	as := fs.String("as", "", "submitting trader, e.g. Manufacturer#M1")
	payloadPath := fs.String("payload", "-", "payload JSON file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	credential, err := parseRef(*as)
	if err != nil {
		return fmt.Errorf("%w: -as: %v", errUsage, err)
	}

	var body []byte
	if *payloadPath == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(*payloadPath)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	payload, err := wire.DecodePayload(body)
	if err != nil {
		return err
	}
	receipt, err := a.svc.Submit(ctx, credential, payload)
	if err != nil {
		return err
	}
	return a.print(receipt)
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: show <trader|commodity|order> <id>", errUsage)
	}
	var (
		v   any
		err error
	)
	switch args[0] {
	case "trader":
		v, err = a.svc.GetTrader(ctx, args[1])
	case "commodity":
		v, err = a.svc.GetCommodity(ctx, args[1])
	case "order":
		v, err = a.svc.GetPurchaseOrder(ctx, args[1])
	default:
		return fmt.Errorf("%w: unknown kind %q", errUsage, args[0])
	}
	if err != nil {
		return err
	}
	return a.print(v)
}

func (a *app) chain(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: chain <commodity id>", errUsage)
	}
	chain, err := a.svc.CustodyChain(ctx, args[0])
	if err != nil {
		return err
	}
	return a.print(chain)
}

func (a *app) holdings(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: holdings <Role#id>", errUsage)
	}
	trader, err := parseRef(args[0])
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	owned, err := a.svc.Holdings(ctx, trader)
	if err != nil {
		return err
	}
	return a.print(owned)
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 50, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	records, err := a.svc.History(ctx, service.ListParams{Page: *page, PageSize: *size})
	if err != nil {
		return err
	}
	return a.print(records)
}

func (a *app) serve(ctx context.Context) error {
	return a.opsServer().Run(ctx)
}

// withOps runs fn with the ops listener alongside it when enabled.
func (a *app) withOps(ctx context.Context, fn func(ctx context.Context) error) error {
	if !a.cfg.Ops.Enabled {
		return fn(ctx)
	}
	opsCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- a.opsServer().Run(opsCtx) }()

	err := fn(ctx)
	stop()
	if opsErr := <-errCh; opsErr != nil {
		a.logger.Warn("ops server stopped with error", "error", opsErr)
	}
	return err
}

func (a *app) opsServer() *server.Server {
	router := server.NewRouter(a.logger, server.RouterDependencies{
		Health:  server.StoreHealthService{Store: a.store},
		Metrics: a.metrics,
	})
	return server.New(a.logger, a.cfg.Ops, router)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseRef accepts a full resource URI or the short Class#id form.
func parseRef(s string) (domain.Ref, error) {
	if strings.HasPrefix(s, "resource:") {
		return domain.ParseRef(s)
	}
	class, id, ok := strings.Cut(s, "#")
	if !ok || id == "" {
		return domain.Ref{}, fmt.Errorf("reference %q: want Class#id", s)
	}
	if role, err := domain.ParseRole(class); err == nil {
		return domain.TraderRef(role, id), nil
	}
	ref := domain.Ref{Class: class, ID: id}
	if ref.Kind() == "" {
		return domain.Ref{}, fmt.Errorf("reference %q: unknown class %s", s, class)
	}
	return ref, nil
}
