// OLED clock service

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"example.com/oled-clock/base/display"
	"example.com/oled-clock/base/timebase"

	"example.com/oled-clock/core/device"
	"example.com/oled-clock/core/schedule"
	"example.com/oled-clock/core/sync"

	"example.com/oled-clock/benchmark"

	"example.com/oled-clock/driver/clock"
	"example.com/oled-clock/driver/console"
	"example.com/oled-clock/driver/ntpc"
	"example.com/oled-clock/driver/oled"

	"example.com/oled-clock/net/ntp"
)

const (
	displayModeConsole = "console"
	displayModeSerial  = "serial"
)

type svcConfig struct {
	NTPServer         string `toml:"ntp_server,omitempty"`
	LocalAddr         string `toml:"local_address,omitempty"`
	MetricsAddr       string `toml:"metrics_address,omitempty"`
	Display           string `toml:"display,omitempty"`
	SerialDevice      string `toml:"serial_device,omitempty"`
	SerialBaud        int    `toml:"serial_baud,omitempty"`
	Timezone          string `toml:"timezone,omitempty"`
	NightStartHour    int    `toml:"night_start_hour,omitempty"`
	NightEndHour      int    `toml:"night_end_hour,omitempty"`
	SyncHour          int    `toml:"sync_hour,omitempty"`
	SyncMinute        int    `toml:"sync_minute,omitempty"`
	MinYear           int    `toml:"min_year,omitempty"`
	ConnectIntervalMs int    `toml:"connect_interval_ms,omitempty"`
	ConnectAttempts   int    `toml:"connect_attempts,omitempty"`
	FetchIntervalMs   int    `toml:"fetch_interval_ms,omitempty"`
	FetchAttempts     int    `toml:"fetch_attempts,omitempty"`
}

var (
	log *zap.Logger
)

func initLogger(verbose bool) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
}

func runMonitor(log *zap.Logger, addr string) {
	http.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe(addr, nil)
	log.Fatal("failed to serve metrics", zap.Error(err))
}

func defaultConfig() svcConfig {
	return svcConfig{
		MetricsAddr:    "127.0.0.1:8080",
		Display:        displayModeConsole,
		SerialBaud:     115200,
		NightStartHour: schedule.DefaultNightStartHour,
		NightEndHour:   schedule.DefaultNightEndHour,
		SyncHour:       schedule.DefaultSyncHour,
		SyncMinute:     schedule.DefaultSyncMinute,
		MinYear:        sync.DefaultMinYear,
	}
}

func loadConfig(configFile string) svcConfig {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	cfg := defaultConfig()
	err = toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		log.Fatal("failed to decode configuration", zap.Error(err))
	}
	return cfg
}

func localAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.LocalAddr == "" {
		return nil
	}
	laddr, err := net.ResolveUDPAddr("udp", cfg.LocalAddr)
	if err != nil {
		log.Fatal("failed to resolve local address",
			zap.String("address", cfg.LocalAddr), zap.Error(err))
	}
	return laddr
}

func remoteAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.NTPServer == "" {
		log.Fatal("ntp_server not specified in config")
	}
	s := cfg.NTPServer
	if _, _, err := net.SplitHostPort(s); err != nil {
		s = net.JoinHostPort(s, strconv.Itoa(ntp.ServerPort))
	}
	raddr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		log.Fatal("failed to resolve NTP server address",
			zap.String("address", s), zap.Error(err))
	}
	return raddr
}

func timezone(cfg svcConfig) *time.Location {
	if cfg.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal("failed to load timezone",
			zap.String("timezone", cfg.Timezone), zap.Error(err))
	}
	return loc
}

func newSurface(cfg svcConfig) display.Surface {
	switch cfg.Display {
	case displayModeConsole:
		return &console.Display{W: os.Stdout}
	case displayModeSerial:
		if cfg.SerialDevice == "" {
			log.Fatal("serial_device not specified in config")
		}
		d, err := oled.Open(cfg.SerialDevice, cfg.SerialBaud)
		if err != nil {
			log.Fatal("failed to open serial display", zap.Error(err))
		}
		return d
	default:
		log.Fatal("unexpected display mode", zap.String("display", cfg.Display))
		return nil
	}
}

func newCoordinator(cfg svcConfig, surface display.Surface) *sync.Coordinator {
	c := &ntpc.Client{
		Log:        log,
		LocalAddr:  localAddress(cfg),
		RemoteAddr: remoteAddress(cfg),
	}
	return &sync.Coordinator{
		Log:             log,
		Session:         c,
		Source:          c,
		Surface:         surface,
		ConnectInterval: time.Duration(cfg.ConnectIntervalMs) * time.Millisecond,
		ConnectAttempts: cfg.ConnectAttempts,
		FetchInterval:   time.Duration(cfg.FetchIntervalMs) * time.Millisecond,
		FetchAttempts:   cfg.FetchAttempts,
		MinYear:         cfg.MinYear,
	}
}

func scheduleConfig(cfg svcConfig) schedule.Config {
	return schedule.Config{
		NightStartHour: cfg.NightStartHour,
		NightEndHour:   cfg.NightEndHour,
		SyncHour:       cfg.SyncHour,
		SyncMinute:     cfg.SyncMinute,
	}
}

func runDevice(configFile string) {
	ctx := context.Background()

	cfg := loadConfig(configFile)
	lclk := &clock.SystemClock{Log: log, Loc: timezone(cfg)}
	timebase.RegisterClock(lclk)

	surface := newSurface(cfg)
	dev := &device.Device{
		Log:      log,
		Surface:  surface,
		Syncer:   newCoordinator(cfg, surface),
		Schedule: scheduleConfig(cfg),
	}

	go runMonitor(log, cfg.MetricsAddr)

	err := dev.Run(ctx)
	log.Fatal("device loop terminated", zap.Error(err))
}

func runSyncTool(configFile string) {
	ctx := context.Background()

	cfg := loadConfig(configFile)
	lclk := &clock.SystemClock{Log: log, Loc: timezone(cfg)}
	timebase.RegisterClock(lclk)

	surface := newSurface(cfg)
	res := newCoordinator(cfg, surface).Attempt(ctx)
	if res.Outcome != sync.Success {
		log.Fatal("time sync failed", zap.Stringer("outcome", res.Outcome))
	}
	log.Info("time sync succeeded", zap.Time("time", res.Time))
}

func runBenchmark(configFile string, numRequests int, profileCPU bool) {
	cfg := loadConfig(configFile)
	lclk := &clock.SystemClock{Log: zap.NewNop()}
	timebase.RegisterClock(lclk)
	benchmark.RunBenchmark(remoteAddress(cfg), numRequests, profileCPU)
}

func exitWithUsage() {
	fmt.Println("usage: clockservice run|sync|benchmark [flags]")
	os.Exit(1)
}

func main() {
	var (
		verbose     bool
		configFile  string
		numRequests int
		profileCPU  bool
	)

	runFlags := flag.NewFlagSet("run", flag.ExitOnError)
	syncFlags := flag.NewFlagSet("sync", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	runFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	runFlags.StringVar(&configFile, "config", "", "Config file")

	syncFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	syncFlags.StringVar(&configFile, "config", "", "Config file")

	benchmarkFlags.StringVar(&configFile, "config", "", "Config file")
	benchmarkFlags.IntVar(&numRequests, "requests", 10000, "Number of requests")
	benchmarkFlags.BoolVar(&profileCPU, "profile", false, "Write a CPU profile")

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case runFlags.Name():
		err := runFlags.Parse(os.Args[2:])
		if err != nil || runFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runDevice(configFile)
	case syncFlags.Name():
		err := syncFlags.Parse(os.Args[2:])
		if err != nil || syncFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runSyncTool(configFile)
	case benchmarkFlags.Name():
		err := benchmarkFlags.Parse(os.Args[2:])
		if err != nil || benchmarkFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(false)
		runBenchmark(configFile, numRequests, profileCPU)
	default:
		exitWithUsage()
	}
}
