package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/ringsim/internal/client"
	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ringsim/internal/shared/id"
)

const usage = `Usage: ringctl [-server URL] [-json] <command> [flags]

Commands:
  init      initialize a session (-buffer, -producers, -consumers, -speed, -produce, -consume, -policy)
  preset    initialize from a named preset
  presets   list presets
  start     start the workers
  stop      stop the workers, freezing in-flight slots
  continue  resume a stopped session
  reset     clear the session
  status    print the current snapshot
  running   print whether workers are active
  history   print consumed items
  export    write consumed items as NDJSON (-o file)
  watch     stream snapshots (-interval)
  health    print server health
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ringctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("ringctl", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	server := global.String("server", envOr("RINGSIM_SERVER", "http://localhost:8000"), "Server base URL")
	asJSON := global.Bool("json", false, "Print raw JSON")
	timeout := global.Duration("timeout", 10*time.Second, "Per-call timeout")
	verbose := global.Bool("v", false, "Log requests and retries")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := logging.FromSettings(level, true)
	defer logger.Sync()

	cfg := client.DefaultConfig()
	cfg.BaseURL = *server
	cfg.Timeout = *timeout
	c := client.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// One trace per invocation so server logs can be matched to it
	ctx = tracing.WithTraceID(ctx, tracing.TraceID(id.NewRequestID()))

	p := printer{out: out, json: *asJSON}
	cmd, rest := global.Arg(0), global.Args()[1:]

	switch cmd {
	case "init":
		req, err := parseInit(rest)
		if err != nil {
			return err
		}
		return p.snapshot(c.Init(ctx, req))
	case "preset":
		if len(rest) != 1 {
			return errors.New("preset takes exactly one name")
		}
		return p.snapshot(c.InitPreset(ctx, rest[0]))
	case "presets":
		presets, err := c.Presets(ctx)
		if err != nil {
			return err
		}
		if p.json {
			return p.encode(presets)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tBUFFER\tPRODUCERS\tCONSUMERS\tPOLICY\tDESCRIPTION")
		for _, pr := range presets {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
				pr.Name, pr.BufferSize, pr.ProducerCount, pr.ConsumerCount, pr.DelayPolicy, pr.Description)
		}
		return tw.Flush()
	case "start":
		return p.snapshot(c.Start(ctx))
	case "stop":
		return p.snapshot(c.Stop(ctx))
	case "continue":
		return p.snapshot(c.Continue(ctx))
	case "reset":
		msg, err := c.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, msg)
		return nil
	case "status":
		return p.snapshot(c.Status(ctx))
	case "running":
		running, err := c.IsRunning(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, running)
		return nil
	case "history":
		items, err := c.History(ctx)
		if err != nil {
			return err
		}
		return p.history(items)
	case "export":
		return export(ctx, c, rest, out)
	case "watch":
		return watch(ctx, c, rest, p)
	case "health":
		health, err := c.Health(ctx)
		if err != nil {
			return err
		}
		return p.encode(health)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseInit(args []string) (client.InitRequest, error) {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	buffer := fs.Int("buffer", 0, "Buffer size")
	producers := fs.Int("producers", 0, "Producer count")
	consumers := fs.Int("consumers", 0, "Consumer count")
	speed := fs.Duration("speed", 0, "Simulation speed (push interval)")
	produce := fs.Duration("produce", -1, "Production delay")
	consume := fs.Duration("consume", -1, "Consumption delay")
	policy := fs.String("policy", "", "Delay policy: fixed or jitter")
	if err := fs.Parse(args); err != nil {
		return client.InitRequest{}, err
	}

	// Only flags given on the command line override the server defaults
	var req client.InitRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "buffer":
			req.BufferSize = buffer
		case "producers":
			req.ProducerCount = producers
		case "consumers":
			req.ConsumerCount = consumers
		case "speed":
			req.SimulationSpeed = ms(*speed)
		case "produce":
			req.ProductionDelayMs = ms(*produce)
		case "consume":
			req.ConsumptionDelayMs = ms(*consume)
		case "policy":
			req.DelayPolicy = policy
		}
	})
	return req, nil
}

func export(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	path := fs.String("o", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	items, err := c.ExportHistory(ctx)
	if err != nil {
		return err
	}

	w := out
	if *path != "" {
		f, err := os.Create(*path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	enc := sonic.ConfigDefault.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func watch(ctx context.Context, c *client.Client, args []string, p printer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", 0, "Push interval (default: the session's simulation speed)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	err := c.Watch(ctx, *interval, func(s simulation.Snapshot) error {
		if p.json {
			return p.encode(s)
		}
		fmt.Fprintln(p.out, summary(s))
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type printer struct {
	out  io.Writer
	json bool
}

func (p printer) encode(v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

func (p printer) snapshot(s *simulation.Snapshot, err error) error {
	if err != nil {
		return err
	}
	if p.json {
		return p.encode(s)
	}

	fmt.Fprintln(p.out, summary(*s))
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSTATE\tVALUE\tPRODUCER\tCONSUMER\tREMAINING")
	for _, slot := range s.Buffer {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%dms\n",
			slot.Index, slot.State, slot.Value, dash(slot.ProducerID), dash(slot.ConsumerID), slot.RemainingMs)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, line := range s.Logs {
		fmt.Fprintln(p.out, "  "+line)
	}
	return nil
}

func (p printer) history(items []simulation.HistoryView) error {
	if p.json {
		return p.encode(items)
	}
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VALUE\tSLOT\tPRODUCER\tCONSUMER\tWAIT")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%dms\n", it.Value, it.Index, it.ProducerID, it.ConsumerID, it.WaitTimeMs)
	}
	return tw.Flush()
}

func summary(s simulation.Snapshot) string {
	state := "stopped"
	if s.Running {
		state = "running"
	}
	if s.SessionID == "" {
		state = "dormant"
	}
	return fmt.Sprintf("%s %s: buffer=%d items=%d produced=%d consumed=%d full-waits=%d empty-waits=%d",
		s.SessionID, state, s.BufferSize, s.ItemCount,
		s.Stats.ProducedTotal, s.Stats.ConsumedTotal, s.Stats.FullWaitEvents, s.Stats.EmptyWaitEvents)
}

func ms(d time.Duration) *int64 {
	v := d.Milliseconds()
	return &v
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
