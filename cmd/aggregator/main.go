// Command aggregator decodes a serial-tunnel stream (spec.md §6) back into
// CAN frames, feeds a sensornet registry, and logs decoded status/ambient
// readings -- the Go analogue of code_pi.py, excluding the Thingspeak
// bulk-update client: spec.md §1 lists host-side time-series uploaders as
// an out-of-scope external collaborator, so this command only observes and
// logs what the bus reports.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomazk/envcfg"
	"go.uber.org/zap"

	"github.com/Sustaingineering/sensornetwork"
	"github.com/Sustaingineering/sensornetwork/schema/sensornet"
	"github.com/Sustaingineering/sensornetwork/transport/serialtunnel"
)

var environ struct {
	TickIntervalMs int `envcfg:"AGGREGATOR_TICK_MS"`
}

func main() {
	if err := envcfg.Unmarshal(&environ); err != nil {
		fmt.Fprintln(os.Stderr, "reading environment config:", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:   "aggregator",
		Short: "Decode a serial tunnel stream into the property bus and log readings",
		RunE:  run,
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	tickMs := environ.TickIntervalMs
	if tickMs <= 0 {
		tickMs = sensornet.TransmitInterval
	}

	stdctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reg, err := sensornet.NewRegistry(nil, nil)
	if err != nil {
		return fmt.Errorf("building registry: %w", err)
	}
	reg.Logger = sugar

	type decoded struct {
		frame serialtunnel.Frame
		err   error
	}
	frames := make(chan decoded, 32)
	go func() {
		defer close(frames)
		dec := serialtunnel.NewDecoder(os.Stdin)
		for {
			f, err := dec.Decode()
			if err != nil {
				frames <- decoded{err: err}
				if err == io.EOF {
					return
				}
				continue
			}
			frames <- decoded{frame: f}
		}
	}()

	ticker := time.NewTicker(time.Duration(tickMs) * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-stdctx.Done():
			return nil
		case d, open := <-frames:
			if !open {
				return nil
			}
			if d.err != nil {
				if d.err != io.EOF {
					sugar.Warnw("decoding serial frame", "error", d.err)
				}
				continue
			}
			now := sensornetwork.Instant(uint32(time.Since(start).Milliseconds()))
			if err := reg.Receive(uint16(d.frame.ID), d.frame.Payload, now); err != nil {
				sugar.Warnw("ingesting frame", "id", d.frame.ID, "error", err)
			}
		case <-ticker.C:
			now := sensornetwork.Instant(uint32(time.Since(start).Milliseconds()))
			reg.LogWarnings(reg.EventLoop(now))
			logReadings(sugar, reg, now)
		}
	}
}

func logReadings(sugar *zap.SugaredLogger, reg *sensornet.Registry, now sensornetwork.Instant) {
	if status, ok := reg.Get("weatherstation_status", now); ok {
		s := status.(*sensornetwork.ExtendedStructProperty)
		resetReason, _ := s.Get("reset_reason")
		firstMsg, _ := s.Get("is_first_message")
		version, _ := s.Get("proto_version")
		sugar.Infow("status",
			"reset_reason", resetReason,
			"is_first_message", firstMsg,
			"proto_version", version,
		)
	}

	if ambient, ok := reg.Get("weatherstation_ambient", now); ok {
		a := ambient.(*sensornetwork.ExtendedStructProperty)
		temperature, _ := a.Get("temperature")
		humidity, _ := a.Get("humidity")
		pressure, _ := a.Get("pressure")
		sugar.Infow("ambient",
			"temperature", temperature,
			"humidity", humidity,
			"pressure", pressure,
		)
	}
}
