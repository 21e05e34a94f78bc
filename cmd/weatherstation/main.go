// Command weatherstation runs a transmit-only node that samples a weather
// station's sensors on an interval and advertises them on a simulated bus.
// Real sensor sampling hardware is out of scope here (see the library's
// non-goals); sampleSensors below is a stand-in a real deployment replaces.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/GoAethereal/cancel"
	"github.com/spf13/cobra"
	"github.com/tomazk/envcfg"
	"go.uber.org/zap"

	"github.com/Sustaingineering/sensornetwork"
	"github.com/Sustaingineering/sensornetwork/schema/sensornet"
	"github.com/Sustaingineering/sensornetwork/transport/cantcp"
)

var environ struct {
	BusAddr string `envcfg:"WEATHERSTATION_BUS_ADDR"`
}

func main() {
	if err := envcfg.Unmarshal(&environ); err != nil {
		fmt.Fprintln(os.Stderr, "reading environment config:", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:   "weatherstation",
		Short: "Sample weather sensors and advertise them on the property bus",
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

	reg, err := sensornet.NewRegistry(node, nil)
	if err != nil {
		return fmt.Errorf("building registry: %w", err)
	}
	reg.Logger = sugar

	ticker := time.NewTicker(sensornet.TransmitInterval * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-stdctx.Done():
			return nil
		case <-ticker.C:
		}

		now := sensornetwork.Instant(uint32(time.Since(start).Milliseconds()))

		if err := reg.AssignStatus(nil); err != nil {
			sugar.Warnw("assigning status", "error", err)
		}
		sampleSensors(reg)
		reg.LogWarnings(reg.EventLoop(now))
	}
}

// sampleSensors stands in for real weather hardware: it assigns fixed
// baseline readings plus small random noise so the bus has something
// changing to observe. A real deployment replaces this with actual sensor reads.
func sampleSensors(reg *sensornet.Registry) {
	reg.Set("weatherstation_ambient", map[string]interface{}{
		"temperature": 18 + rand.Float64()*4,
		"humidity":    45 + rand.Float64()*10,
		"pressure":    1013 + rand.Float64()*2,
	})
}
