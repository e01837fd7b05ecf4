package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/burrow/cli/config"
	"github.com/pithecene-io/burrow/cli/render"
	"github.com/pithecene-io/burrow/metrics"
	"github.com/pithecene-io/burrow/queue"
)

// PassResponse summarizes what a send or flush did to the database.
// Sessions lists the sessions still pinned by undelivered records.
type PassResponse struct {
	Before      int              `json:"before"`
	Pending     int64            `json:"pending"`
	Sent        int64            `json:"sent"`
	Failed      int64            `json:"failed"`
	Dropped     int64            `json:"dropped"`
	Evicted     int64            `json:"evicted"`
	Flushed     int64            `json:"flushed"`
	Passes      int64            `json:"passes"`
	Submissions map[string]int64 `json:"submissions,omitempty"`
	Sessions    map[string]int   `json:"sessions,omitempty"`
}

func passResponse(before int, stats queue.Stats, snap metrics.Snapshot, pinned map[string]int) PassResponse {
	return PassResponse{
		Before:      before,
		Pending:     stats.Pending,
		Sent:        stats.Sent,
		Failed:      stats.Failed,
		Dropped:     stats.Dropped,
		Evicted:     stats.Evicted,
		Flushed:     stats.Flushed,
		Passes:      stats.SendPasses,
		Submissions: snap.Submissions,
		Sessions:    pinned,
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// SendCommand returns the send command.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Submit queued records through the configured submission client",
		Flags: append(DatabaseFlags(),
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep sending every retry interval until interrupted",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Retry interval for --watch (overrides database.retry_interval)",
			},
		),
		Action: sendAction,
	}
}

func sendAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	watch := c.Bool("watch")
	if interval := c.Duration("interval"); interval > 0 {
		cfg.Database.RetryInterval.Duration = interval
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	ws, err := openWorkspace(ctx, cfg, watch)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open database: %v", err), 1)
	}
	defer ws.Close()

	before := ws.queue.Count()
	if watch {
		fmt.Fprintf(os.Stderr, "sending every %s, press Ctrl-C to stop\n", retryInterval(cfg))
		<-ctx.Done()
		// Dispose waits for the scheduler before stats are read.
		ws.queue.Dispose()
	} else {
		ws.queue.Send(ctx)
	}

	return r.Render(ws.response(before))
}

func retryInterval(cfg *config.Config) time.Duration {
	if d := cfg.Database.RetryInterval.Duration; d > 0 {
		return d
	}
	return queue.DefaultRetryInterval
}

// FlushCommand returns the flush command.
func FlushCommand() *cli.Command {
	return &cli.Command{
		Name:   "flush",
		Usage:  "Send every queued record once and discard whatever is left",
		Flags:  DatabaseFlags(),
		Action: flushAction,
	}
}

func flushAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	ws, err := openWorkspace(ctx, cfg, false)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open database: %v", err), 1)
	}
	defer ws.Close()

	before := ws.queue.Count()
	ws.queue.Flush(ctx)

	return r.Render(ws.response(before))
}
