// Command sump-sensor samples the sump pump sense line and republishes
// state transitions to a single TCP client as fixed 12-byte status frames.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"github.com/sweeney/sump-sensor/internal/config"
	"github.com/sweeney/sump-sensor/internal/frame"
	"github.com/sweeney/sump-sensor/internal/gpio"
	"github.com/sweeney/sump-sensor/internal/indicator"
	"github.com/sweeney/sump-sensor/internal/metrics"
	"github.com/sweeney/sump-sensor/internal/mqtt"
	"github.com/sweeney/sump-sensor/internal/pump"
	"github.com/sweeney/sump-sensor/internal/server"
	"github.com/sweeney/sump-sensor/internal/status"
	"github.com/sweeney/sump-sensor/internal/timebase"
	"github.com/sweeney/sump-sensor/internal/web"
)

func main() {
	def := config.Default()

	configPath := flag.String("config", "", "TOML config file (optional)")
	period := flag.Duration("period", def.Period, "Sampling period")
	idleGrace := flag.Duration("idle-grace", def.IdleGrace, "Extra dwell per cycle while the pump is idle (0 to disable)")
	listen := flag.String("listen", def.ListenAddr, "Status service listen address")
	chip := flag.String("chip", def.Chip, "GPIO character device")
	pinSense := flag.Int("pin-sense", def.PinSense, "BCM pin number for the sense line")
	pinActivity := flag.Int("pin-activity", def.PinActivity, "BCM pin number for the activity LED")
	pinClient := flag.Int("pin-client", def.PinClient, "BCM pin number for the client-connected LED")
	broker := flag.String("broker", def.Broker, "MQTT mirror broker URL (empty to disable)")
	httpAddr := flag.String("http", def.HTTPAddr, "HTTP status address (empty to disable)")
	printState := flag.Bool("print-state", false, "Print current pump state and exit")

	flag.Parse()

	changed := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { changed[f.Name] = true })

	cfg := config.Config{
		Period:      *period,
		IdleGrace:   *idleGrace,
		ListenAddr:  *listen,
		Chip:        *chip,
		PinSense:    *pinSense,
		PinActivity: *pinActivity,
		PinClient:   *pinClient,
		Broker:      *broker,
		HTTPAddr:    *httpAddr,
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if *configPath != "" {
		fc, err := config.LoadFile(*configPath)
		if err != nil {
			log.Error().Err(err).Str("path", *configPath).Msg("load config")
			os.Exit(1)
		}
		if err := config.Apply(&cfg, fc, changed); err != nil {
			log.Error().Err(err).Str("path", *configPath).Msg("apply config")
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid config")
		os.Exit(1)
	}

	if err := run(cfg, *printState, log); err != nil {
		log.Error().Err(err).Msg("fatal")
		os.Exit(1)
	}
}

func run(cfg config.Config, printState bool, log zerolog.Logger) error {
	chip, err := gpio.Open(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	sense, err := chip.RequestInput(cfg.PinSense)
	if err != nil {
		return fmt.Errorf("init sense line: %w", err)
	}
	sensor := pump.NewSensor(sense)

	if printState {
		active, err := sensor.Read()
		if err != nil {
			return fmt.Errorf("read sense line: %w", err)
		}
		fmt.Printf("pump: %s\n", pump.State{Active: active}.String())
		return nil
	}

	activity, err := chip.RequestOutput(cfg.PinActivity)
	if err != nil {
		return fmt.Errorf("init activity line: %w", err)
	}
	clientLED, err := chip.RequestOutput(cfg.PinClient)
	if err != nil {
		return fmt.Errorf("init client line: %w", err)
	}
	ind := indicator.New(activity, clientLED, log)
	defer ind.Off()

	ch, err := server.Listen(cfg.ListenAddr, log)
	if err != nil {
		return fmt.Errorf("init listener: %w", err)
	}
	defer ch.Close()

	metrics.Register()

	tracker := status.NewTracker(time.Now(), status.Config{
		PeriodMs:    cfg.Period.Milliseconds(),
		IdleGraceMs: cfg.IdleGrace.Milliseconds(),
		ListenAddr:  cfg.ListenAddr,
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	})

	// The MQTT mirror is optional; a dead broker downgrades it to off
	// rather than blocking the daemon.
	var publisher mqtt.Publisher
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.Broker)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt mirror unavailable, continuing without it")
		} else {
			publisher = p
			defer p.Close()
		}
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http status server listening")
	}

	publishSystem(publisher, tracker, "STARTUP", "", log)

	log.Info().
		Dur("period", cfg.Period).
		Dur("idle_grace", cfg.IdleGrace).
		Str("listen", ch.Addr().String()).
		Msg("started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sigName string
	go func() {
		s := <-sigCh
		sigName = signalName(s)
		cancel()
	}()

	daemon.SdNotify(false, daemon.SdNotifyReady)

	pace := timebase.New(cfg.Period, time.Now())
	err = runLoop(ctx, pace, sensor, ind, ch, publisher, tracker, cfg.IdleGrace, log)

	daemon.SdNotify(false, daemon.SdNotifyStopping)

	reason := sigName
	if err != nil {
		reason = "ERROR"
	}
	publishSystem(publisher, tracker, "SHUTDOWN", reason, log)
	return err
}

// pacer abstracts the timebase so tests can drive virtual time.
type pacer interface {
	Next() time.Time
	SleepUntil(ctx context.Context, deadline time.Time) error
	Postpone(d time.Duration)
	Stamp(at time.Time) uint64
}

// statusChannel abstracts the client channel so tests can observe pushes
// without sockets.
type statusChannel interface {
	AcceptPending(current frame.Frame, observed bool) bool
	CheckLiveness()
	Publish(f frame.Frame) bool
	HasClient() bool
	Peer() string
}

// runLoop executes the sense-and-publish cycle until the context is
// cancelled (clean shutdown) or a fatal error occurs. Per tick: wait for the
// absolute deadline, raise the activity indicator, sample the sense line and
// detect edges, publish on change, pick up a pending client, poll client
// liveness, refresh the status tracker, then clear the activity indicator.
func runLoop(ctx context.Context, pace pacer, sensor *pump.Sensor, ind *indicator.Controller, ch statusChannel, publisher mqtt.Publisher, tracker *status.Tracker, idleGrace time.Duration, log zerolog.Logger) error {
	var state pump.State
	var counts status.Counts
	hadClient := false

	for {
		deadline := pace.Next()
		if err := pace.SleepUntil(ctx, deadline); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info().Msg("shutting down")
				return nil
			}
			return fmt.Errorf("timing wait: %w", err)
		}

		ind.SetActivity(true)
		metrics.RecordCycle()

		active, err := sensor.Read()
		if err != nil {
			// A broken sense line cannot be trusted; abort the loop.
			return fmt.Errorf("read sensor: %w", err)
		}

		next, changed := pump.Detect(state, active, pace.Stamp(deadline))
		if changed {
			state = next
			if state.Active {
				counts.PumpOn++
			} else {
				counts.PumpOff++
			}
			metrics.RecordEdge(state.Active)
			log.Info().Str("state", state.String()).Uint64("stamp_ms", state.Stamp).Msg("pump state")

			if ch.Publish(frame.Frame{Stamp: state.Stamp, Active: state.Active}) {
				metrics.RecordFrame()
			}
			if publisher != nil {
				if err := publisher.Publish(mqtt.Event{Timestamp: time.Now(), Stamp: state.Stamp, Active: state.Active}); err != nil {
					log.Warn().Err(err).Msg("mirror publish failed")
				}
			}
		}

		if ch.AcceptPending(frame.Frame{Stamp: state.Stamp, Active: state.Active}, state.Observed()) {
			counts.ClientConnects++
			metrics.RecordConnect()
		}

		ch.CheckLiveness()

		has := ch.HasClient()
		if hadClient && !has {
			counts.ClientDisconnects++
			metrics.RecordDisconnect()
		}
		hadClient = has
		ind.SetClientPresent(has)

		if tracker != nil {
			tracker.Update(state, counts)
			tracker.SetClient(has, ch.Peer())
		}

		if idleGrace > 0 && !state.Active {
			// Dwell longer while idle. Shifting the deadline chain keeps
			// this a cadence change instead of accumulating lateness.
			if err := pace.SleepUntil(ctx, deadline.Add(idleGrace)); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					log.Info().Msg("shutting down")
					return nil
				}
				return fmt.Errorf("timing wait: %w", err)
			}
			pace.Postpone(idleGrace)
		}

		ind.SetActivity(false)
	}
}

func publishSystem(pub mqtt.Publisher, tracker *status.Tracker, event, reason string, log zerolog.Logger) {
	if pub == nil {
		return
	}
	snap := tracker.Snapshot()
	e := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := pub.PublishSystem(e); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("system event publish failed")
	} else {
		log.Info().Str("event", event).Msg("published system event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
