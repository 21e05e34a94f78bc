// Command cangateway bridges a simulated CAN bus to the bit-exact serial
// tunnel format described in spec.md §6: the Go analogue of
// code_feather_cangateway.py, which forwards every frame observed on the
// CAN side onto a serial stream tagged with a monotonic millisecond
// timestamp since the gateway started. Unlike the original it polls the
// bus rather than blocking on a single-frame listener, since cantcp.Node's
// Receive never blocks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/GoAethereal/cancel"
	"github.com/spf13/cobra"
	"github.com/tomazk/envcfg"
	"go.uber.org/zap"

	"github.com/Sustaingineering/sensornetwork/transport/cantcp"
	"github.com/Sustaingineering/sensornetwork/transport/serialtunnel"
)

const pollInterval = 50 * time.Millisecond

var environ struct {
	BusAddr string `envcfg:"CANGATEWAY_BUS_ADDR"`
}

func main() {
	if err := envcfg.Unmarshal(&environ); err != nil {
		fmt.Fprintln(os.Stderr, "reading environment config:", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:   "cangateway",
		Short: "Forward frames from the property bus onto a serial tunnel",
		RunE:  run,
	}
	root.Flags().String("bus-addr", first(environ.BusAddr, "localhost:7700"), "address of the simulated CAN bus")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func first(opts ...string) string {
	for _, opt := range opts {
		if opt != "" {
			return opt
		}
	}
	return ""
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	busAddr, _ := cmd.Flags().GetString("bus-addr")

	stdctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancelDial := cancel.Promote(stdctx)
	defer cancelDial()

	node, err := cantcp.Dial(ctx, busAddr)
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer node.Close()

	enc := serialtunnel.NewEncoder(os.Stdout)
	start := time.Now()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stdctx.Done():
			return nil
		case <-ticker.C:
		}

		for {
			id, data, ok, err := node.Receive()
			if err != nil {
				sugar.Warnw("receiving from bus", "error", err)
				break
			}
			if !ok {
				break
			}
			frame := serialtunnel.Frame{
				TimestampMs: uint32(time.Since(start).Milliseconds()),
				ID:          uint32(id),
				Extended:    false,
				Payload:     data,
			}
			if err := enc.Encode(frame); err != nil {
				sugar.Warnw("writing serial frame", "error", err)
			}
		}
	}
}
