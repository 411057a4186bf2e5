package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/seagrayinc/irremote/internal/api"
	"github.com/seagrayinc/irremote/internal/config"
	"github.com/seagrayinc/irremote/internal/hid"
	"github.com/seagrayinc/irremote/internal/ipc"
	"github.com/seagrayinc/irremote/internal/logging"
	"github.com/seagrayinc/irremote/pkg/waveform"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  irremote [run] [OPTIONS]        run the daemon")
	fmt.Fprintln(w, "  irremote devices                list HID devices")
	fmt.Fprintln(w, "  irremote send ACTION...         press actions on a running daemon")
	fmt.Fprintln(w, "  irremote catalog [OPTIONS]      print the active waveform catalog as YAML")
	fmt.Fprintln(w, "  irremote token [-subject NAME]  issue an API token (needs http.jwt_secret)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -config path            YAML config file")
	fmt.Fprintln(w, "  -log-level level        error, warn, info, debug")
	fmt.Fprintln(w, "  -repeats N              protocol repeat count per press")
	fmt.Fprintln(w, "  -frequency HZ           carrier frequency passed to the device")
	fmt.Fprintln(w, "  -catalog-variant name   full or compact")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "ACTIONS:")
	fmt.Fprintf(w, "  %s\n", strings.Join(actionNames(), ", "))
}

func actionNames() []string {
	all := waveform.AllActions()
	out := make([]string, len(all))
	for i, a := range all {
		out[i] = fmt.Sprintf("%q", a.String())
	}
	return out
}

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, hid.NewManager))
}

type managerFunc func() (hid.Manager, error)

func run(ctx context.Context, args []string, stdout, stderr io.Writer, newManager managerFunc) int {
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "run":
		return runCommand(ctx, args, stderr, newManager)
	case "devices":
		return devicesCommand(stdout, stderr, newManager)
	case "send":
		return sendCommand(args, stderr)
	case "catalog":
		return catalogCommand(args, stdout, stderr)
	case "token":
		return tokenCommand(args, stdout, stderr)
	case "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return 2
	}
}

// commonFlags registers the config flags shared by subcommands. The
// returned function loads and validates the config after fs.Parse.
func commonFlags(fs *flag.FlagSet) func() (config.Config, error) {
	var (
		configPath = fs.String("config", "", "YAML config file")
		logLevel   = fs.String("log-level", "", "log level: error, warn, info, debug")
		repeats    = fs.Uint("repeats", 0, "protocol repeat count per press")
		frequency  = fs.Uint("frequency", 0, "carrier frequency in Hz")
		variant    = fs.String("catalog-variant", "", "catalog variant: full or compact")
		catalog    = fs.String("catalog-file", "", "YAML catalog file")
		device     = fs.String("input-device", "", "Linux input event device")
		socket     = fs.String("ipc-socket", "", "Unix domain socket path for IPC")
		listen     = fs.String("http-listen", "", "HTTP listen address")
		natsURL    = fs.String("nats-url", "", "NATS server URL")
	)

	return func() (config.Config, error) {
		cfg := config.Default()
		if *configPath != "" {
			loaded, err := config.LoadFile(*configPath)
			if err != nil {
				return config.Config{}, err
			}
			cfg = loaded
		}

		var o config.FlagOverrides
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "log-level":
				o.LogLevel = logLevel
			case "repeats":
				o.Repeats = repeats
			case "frequency":
				o.FrequencyHz = frequency
			case "catalog-variant":
				o.CatalogVariant = variant
			case "catalog-file":
				o.CatalogFile = catalog
			case "input-device":
				o.InputDevice = device
			case "ipc-socket":
				o.SocketPath = socket
			case "http-listen":
				o.HTTPListen = listen
			case "nats-url":
				o.NATSURL = natsURL
			}
		})
		if err := o.Apply(&cfg); err != nil {
			return config.Config{}, fmt.Errorf("invalid flags: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
}

func runCommand(ctx context.Context, args []string, stderr io.Writer, newManager managerFunc) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	load := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.New(level, stderr)

	mgr, err := newManager()
	if err != nil {
		logger.Error("HID unavailable", "error", err)
		return 1
	}

	if err := runDaemon(ctx, cfg, mgr, logger); err != nil {
		logger.Error("irremote stopped", "error", err)
		return 1
	}
	return 0
}

func devicesCommand(stdout, stderr io.Writer, newManager managerFunc) int {
	mgr, err := newManager()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	infos, err := mgr.List()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	for _, info := range infos {
		fmt.Fprintln(stdout, info.String())
	}
	return 0
}

func sendCommand(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	load := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "send: at least one action is required")
		return 2
	}
	cfg, err := load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	for _, name := range fs.Args() {
		if err := ipc.SendAction(cfg.IPC.SocketPath, name); err != nil {
			fmt.Fprintf(stderr, "send %q: %v\n", name, err)
			return 1
		}
	}
	return 0
}

func catalogCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(stderr)
	load := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	table, err := cfg.LoadTable()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := waveform.EncodeCatalog(stdout, table); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func tokenCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	load := commonFlags(fs)
	subject := fs.String("subject", "irremote", "token subject")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if cfg.HTTP.JWTSecret == "" {
		fmt.Fprintln(stderr, errors.New("token: http.jwt_secret is not configured"))
		return 2
	}

	token, err := api.NewAuthenticator(cfg.HTTP.JWTSecret).Issue(*subject, *ttl)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}
