package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/seagrayinc/irremote/internal/api"
	"github.com/seagrayinc/irremote/internal/bus"
	"github.com/seagrayinc/irremote/internal/config"
	"github.com/seagrayinc/irremote/internal/hid"
	"github.com/seagrayinc/irremote/internal/input"
	"github.com/seagrayinc/irremote/internal/ipc"
	"github.com/seagrayinc/irremote/pkg/dispatch"
	"github.com/seagrayinc/irremote/pkg/router"
	"github.com/seagrayinc/irremote/pkg/session"
	"github.com/seagrayinc/irremote/pkg/toggle"
)

// runDaemon opens the transmitter and serves every configured input
// surface until ctx is canceled. No surface is started when the device
// cannot be opened.
func runDaemon(ctx context.Context, cfg config.Config, mgr hid.Manager, logger *slog.Logger) error {
	table, err := cfg.LoadTable()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	sess, err := session.Open(mgr, cfg.Device.VendorID, cfg.Device.ProductTag,
		session.WithLogger(logger),
		session.WithReport(cfg.Device.ReportID, cfg.Device.ReportLength))
	if err != nil {
		return fmt.Errorf("open transmitter: %w", err)
	}
	defer sess.Close()

	d := dispatch.New(sess,
		dispatch.WithLogger(logger),
		dispatch.WithQueueSize(cfg.Transmit.QueueSize),
		dispatch.WithSlowThreshold(cfg.SlowThreshold()))

	rt := router.New(table, toggle.New(), d, router.Config{
		FrequencyHz: cfg.Transmit.FrequencyHz,
		Repeats:     cfg.Transmit.Repeats,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	d.Start(gctx)

	if cfg.IPC.SocketPath != "" {
		g.Go(func() error {
			return ipc.Serve(gctx, cfg.IPC.SocketPath, rt, logger)
		})
	}

	if len(cfg.Input.Devices) > 0 {
		src := input.NewSource(input.Mapping{
			WheelUp:     cfg.Input.WheelUp,
			WheelDown:   cfg.Input.WheelDown,
			MiddleClick: cfg.Input.MiddleClick,
			Keys:        cfg.Input.Keys,
		}, rt, logger)
		g.Go(func() error {
			return src.Run(gctx, cfg.Input.Devices)
		})
	}

	if cfg.HTTP.Listen != "" {
		srv := api.New(rt, func() api.Status {
			st := api.Status{DeviceOpen: sess.IsOpen(), Stats: d.Stats()}
			if st.DeviceOpen {
				st.Device = sess.Info().String()
			}
			return st
		}, api.Config{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			JWTSecret:      cfg.HTTP.JWTSecret,
		}, logger)
		d.AddObserver(srv.Hub())
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.HTTP.Listen)
		})
	}

	if cfg.NATS.URL != "" {
		nc, err := bus.Connect(cfg.NATS.URL, logger)
		if err != nil {
			// Surfaces already started are unwound through the group.
			g.Go(func() error { return err })
		} else {
			defer nc.Close()
			b := bus.New(nc, rt, bus.Config{
				ActionSubject: cfg.NATS.ActionSubject,
				ResultSubject: cfg.NATS.ResultSubject,
			}, logger)
			d.AddObserver(b)
			g.Go(func() error {
				return b.Run(gctx)
			})
		}
	}

	logger.Info("irremote running", "actions", len(rt.Actions()), "frequency_hz", cfg.Transmit.FrequencyHz, "repeats", cfg.Transmit.Repeats)

	err = g.Wait()
	d.Wait()
	logger.Info("irremote stopped", "stats", d.Stats())
	return err
}
