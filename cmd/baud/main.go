// Package main is the entry point for the baud terminal client.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jedcn/baud/internal/automation"
	"github.com/jedcn/baud/internal/config"
	"github.com/jedcn/baud/internal/expand"
	"github.com/jedcn/baud/internal/logging"
	"github.com/jedcn/baud/internal/session"
	"github.com/jedcn/baud/internal/terminal"
	"github.com/jedcn/baud/internal/transport"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	opts.apply(&cfg)

	log, cleanup, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanup()
	log = log.WithField("session", uuid.NewString()[:8])

	fmt.Printf("Connecting to %s:%d...\n", opts.host, opts.port)

	conn, err := transport.Dial(opts.host, opts.port, time.Duration(cfg.Timeout)*time.Second, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connection failed: %v\n", err)
		return 1
	}
	defer conn.Close()

	sessionOpts := []session.Option{session.WithLogger(log)}

	// Collaborator files reload mid-session when edited.
	watcher, err := config.NewWatcher(log)
	if err != nil {
		log.Warn("file watching unavailable: %v", err)
		watcher = nil
	} else {
		defer watcher.Close()
	}

	if cfg.Expansions != "" {
		expander := expand.New(log)
		if n, lerr := expander.LoadFile(cfg.Expansions); lerr != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", lerr)
		} else {
			fmt.Printf("Loaded %d text expansions from %s\n", n, cfg.Expansions)
			if watcher != nil {
				if werr := watcher.Watch(cfg.Expansions, expander.Reload); werr != nil {
					log.Warn("watching %s: %v", cfg.Expansions, werr)
				}
			}
		}
		sessionOpts = append(sessionOpts, session.WithExpander(expander))
	}

	if cfg.LuaScripts != "" || cfg.LuaPatterns != "" {
		store := automation.NewStore()
		triggers := automation.NewTriggerSet(log)
		engine := automation.NewEngine(store, triggers, log)
		defer engine.Close()

		if cfg.LuaScripts != "" {
			if n, lerr := engine.LoadScripts(cfg.LuaScripts); lerr != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", lerr)
			} else {
				fmt.Printf("Loaded %d Lua scripts from %s\n", n, cfg.LuaScripts)
			}
		}
		if cfg.LuaPatterns != "" {
			if n, lerr := engine.LoadTriggers(cfg.LuaPatterns); lerr != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", lerr)
			} else {
				fmt.Printf("Loaded %d patterns from %s\n", n, cfg.LuaPatterns)
				if watcher != nil {
					if werr := watcher.Watch(cfg.LuaPatterns, triggers.Reload); werr != nil {
						log.Warn("watching %s: %v", cfg.LuaPatterns, werr)
					}
				}
			}
		}
		sessionOpts = append(sessionOpts, session.WithAutomation(engine))
	}

	// Last line before the terminal switches to raw mode.
	fmt.Println("Connected! Press Ctrl+] followed by 'quit' to disconnect.")

	term, err := terminal.Open(os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer term.Close()

	coord := session.New(conn, term, sessionOpts...)

	// Ctrl+C in raw mode arrives as a byte, not a signal, but SIGTERM
	// and a detached SIGINT still deserve a clean terminal.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		coord.Stop()
	}()

	runErr := coord.Run()

	// The session restored the terminal; cooked-mode output is safe
	// again.
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", runErr)
		return 1
	}
	fmt.Printf("\nDisconnected from %s\n", opts.host)
	return 0
}

// options holds command-line values. set records which flags were
// given explicitly so only those override the config file.
type options struct {
	host       string
	port       int
	configPath string

	timeout     int
	logLevel    string
	logFile     string
	expansions  string
	luaScripts  string
	luaPatterns string

	set map[string]bool
}

// apply overlays explicitly-set flags onto the file configuration.
func (o options) apply(cfg *config.Config) {
	if o.set["t"] || o.set["timeout"] {
		cfg.Timeout = o.timeout
	}
	if o.set["log-level"] {
		cfg.LogLevel = o.logLevel
	}
	if o.set["log-file"] {
		cfg.LogFile = o.logFile
	}
	if o.set["expansions"] {
		cfg.Expansions = o.expansions
	}
	if o.set["lua-scripts"] {
		cfg.LuaScripts = o.luaScripts
	}
	if o.set["lua-patterns"] {
		cfg.LuaPatterns = o.luaPatterns
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.IntVar(&opts.timeout, "timeout", 30, "Connection timeout in seconds")
	flag.IntVar(&opts.timeout, "t", 30, "Connection timeout in seconds (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.logFile, "log-file", "", "Session log file (empty disables logging)")
	flag.StringVar(&opts.expansions, "expansions", "", "Path to text expansions file")
	flag.StringVar(&opts.luaScripts, "lua-scripts", "", "Directory of Lua trigger scripts")
	flag.StringVar(&opts.luaPatterns, "lua-patterns", "", "Path to trigger patterns file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Baud - BBS terminal client\n\n")
		fmt.Fprintf(os.Stderr, "Usage: baud [options] host [port]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  baud bbs.example.com           Connect on port 23\n")
		fmt.Fprintf(os.Stderr, "  baud bbs.example.com 2323      Connect on port 2323\n")
		fmt.Fprintf(os.Stderr, "  baud -t 10 bbs.example.com     Connect with a 10s timeout\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("baud %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	opts.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		flag.Usage()
		os.Exit(2)
	}
	opts.host = args[0]
	opts.port = 23
	if len(args) == 2 {
		port, err := strconv.Atoi(args[1])
		if err != nil || port < 1 || port > 65535 {
			fmt.Fprintf(os.Stderr, "Error: invalid port %q\n", args[1])
			os.Exit(2)
		}
		opts.port = port
	}
	return opts
}

// newLogger builds the session logger. Logging stays off unless a log
// file is configured; stderr output would corrupt the raw display.
func newLogger(cfg config.Config) (*logging.Logger, func(), error) {
	if cfg.LogFile == "" {
		return logging.NullLogger, func() {}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Output: f,
		Prefix: "baud",
	})
	return log, func() { _ = f.Close() }, nil
}
