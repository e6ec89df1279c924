// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/pflag"

	"github.com/ffutop/frequencer/internal/config"
	"github.com/ffutop/frequencer/internal/device/counter"
	"github.com/ffutop/frequencer/internal/device/dac"
	"github.com/ffutop/frequencer/internal/device/diag"
	"github.com/ffutop/frequencer/internal/device/nvram"
	"github.com/ffutop/frequencer/internal/device/pll"
	"github.com/ffutop/frequencer/internal/regbank"
	"github.com/ffutop/frequencer/internal/regbank/persistence"
	"github.com/ffutop/frequencer/internal/registry"
	"github.com/ffutop/frequencer/internal/server"
	"github.com/ffutop/frequencer/modbus/ascii"
	"github.com/ffutop/frequencer/transport/console"
	"github.com/ffutop/frequencer/transport/serial"
)

// binding is one handler window waiting to be registered.
type binding struct {
	name  string
	start uint16
	count uint16
	dir   registry.Direction
	h     registry.Handler
}

// openStorage opens the register bank storage.
var openStorage = persistence.Open

func main() {
	os.Exit(run(os.Args[1:]))
}

// run starts the controller and returns the process exit code once it stops.
func run(args []string) int {
	fs := config.Flags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Printf("Failed to parse flags: %v\n", err)
		return 2
	}
	configFile, _ := fs.GetString("config")

	// Load Configuration
	cfg, err := config.LoadConfig(configFile, fs)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	setupLogger(cfg.Log)

	slog.Info("Starting frequencer register controller...", "address", cfg.Device.Address, "checksum", cfg.Device.Checksum)

	checksum, err := ascii.ParseChecksum(cfg.Device.Checksum)
	if err != nil {
		slog.Error("Invalid checksum", "err", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register bank
	storage, bank := openStorage(cfg.Persistence)
	defer func() {
		if err := storage.Save(bank); err != nil {
			slog.Error("Failed to save register bank", "err", err)
		}
		if err := storage.Close(); err != nil {
			slog.Error("Failed to close register bank storage", "err", err)
		}
	}()

	// Serial console
	port, err := serial.Open(cfg.Serial)
	if err != nil {
		slog.Error("Failed to open serial port", "device", cfg.Serial.Device, "err", err)
		return 1
	}
	con := console.New(port, cfg.Console.RxBuffer, cfg.Console.TxBuffer)
	con.Start(ctx)
	defer con.Close()

	bindings, err := setupDevices(ctx, cfg.Registers, bank)
	if err != nil {
		slog.Error("Failed to initialize devices", "err", err)
		return 1
	}

	capacity := cfg.Device.HandlerCapacity
	if capacity == 0 {
		capacity = tableSize(bindings)
		if cfg.Registers.Diag.Enabled {
			// The diagnostic read and reset windows.
			capacity++
		}
	}
	reg := registry.New(capacity)
	srv := server.New(con, reg, server.Options{
		Address:      cfg.Device.Address,
		Checksum:     checksum,
		FrameMax:     cfg.Device.FrameMax,
		PollInterval: cfg.Device.PollInterval,
	})
	if cfg.Registers.Diag.Enabled {
		bindings = append(bindings, diagBindings(cfg.Registers.Diag, srv)...)
	}
	if err := registerAll(reg, bindings); err != nil {
		slog.Error("Failed to build register map", "err", err)
		return 1
	}

	// Wait for Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			slog.Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Register server stopped with error", "err", err)
	}
	st := srv.Stats()
	slog.Info("Goodbye.", "frames", st.FramesReceived, "replies", st.Replies, "exceptions", st.Exceptions)
	return 0
}

// setupDevices initializes every enabled device and returns its windows.
// Background device tasks stop with ctx.
func setupDevices(ctx context.Context, cfg config.RegistersConfig, bank *regbank.Bank) ([]binding, error) {
	var bindings []binding

	if cfg.PLL.Enabled {
		// No SPI controller is exposed to the host.
		slog.Warn("PLL has no SPI bus, using simulated ZL30159")
		drv := pll.NewDriver(pll.NewChip(), cfg.PLL.StickyDelay)
		if err := drv.Init(); err != nil {
			return nil, err
		}
		count := cfg.PLL.Count
		if count > pll.WindowSize {
			count = pll.WindowSize
		}
		h := pll.NewHandler(drv, cfg.PLL.Base)
		bindings = append(bindings,
			binding{"pll", cfg.PLL.Base, count, registry.Read, registry.HandlerFunc(h.Read)},
			binding{"pll", cfg.PLL.Base, count, registry.Write, registry.HandlerFunc(h.Write)},
		)
	}

	if cfg.DAC.Enabled {
		slog.Warn("DAC has no I2C bus, using simulated MCP4728")
		d := dac.New(&dac.SimBus{})
		if err := d.Init(); err != nil {
			return nil, err
		}
		h, err := dac.NewHandler(d, bank, cfg.DAC.Base, cfg.DAC.Count, cfg.DAC.Offset)
		if err != nil {
			return nil, err
		}
		if err := h.Restore(); err != nil {
			return nil, err
		}
		bindings = append(bindings,
			binding{"dac", cfg.DAC.Base, cfg.DAC.Count, registry.Read, registry.HandlerFunc(h.Read)},
			binding{"dac", cfg.DAC.Base, cfg.DAC.Count, registry.Write, registry.HandlerFunc(h.Write)},
		)
	}

	if cfg.Counter.Enabled {
		slog.Warn("Counter has no timer input, using simulated gate", "frequency", cfg.Counter.SimFrequency)
		c := counter.New(counter.NewSimGate(cfg.Counter.SimFrequency), cfg.Counter.History)
		go c.Run(ctx, cfg.Counter.PollInterval)
		count := min(cfg.Counter.Count, counter.WindowSize)
		h := counter.NewHandler(c, cfg.Counter.Base)
		bindings = append(bindings,
			binding{"counter", cfg.Counter.Base, count, registry.Read, registry.HandlerFunc(h.Read)},
		)
	}

	if cfg.NVRAM.Enabled {
		h, err := nvram.NewHandler(bank, cfg.NVRAM.Base, cfg.NVRAM.Count, cfg.NVRAM.Offset)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings,
			binding{"nvram", cfg.NVRAM.Base, cfg.NVRAM.Count, registry.Read, registry.HandlerFunc(h.Read)},
			binding{"nvram", cfg.NVRAM.Base, cfg.NVRAM.Count, registry.Write, registry.HandlerFunc(h.Write)},
		)
	}

	return bindings, nil
}

// diagBindings exposes the counters of srv.
func diagBindings(cfg config.DiagConfig, srv *server.Server) []binding {
	h := diag.NewHandler(srv, cfg.Base)
	count := cfg.Count
	if count > diag.WindowSize {
		count = diag.WindowSize
	}
	return []binding{
		{"diag", cfg.Base, count, registry.Read, registry.HandlerFunc(h.Read)},
		{"diag-reset", cfg.Reset, 1, registry.Write, registry.HandlerFunc(h.Reset)},
	}
}

// tableSize returns the larger number of bindings in one direction.
func tableSize(bindings []binding) int {
	var reads, writes int
	for _, b := range bindings {
		if b.dir == registry.Read {
			reads++
		} else {
			writes++
		}
	}
	return max(reads, writes)
}

// registerAll registers every binding. Any failure leaves the map ambiguous.
func registerAll(reg *registry.Registry, bindings []binding) error {
	for _, b := range bindings {
		if err := reg.Register(b.start, b.count, b.dir, b.h); err != nil {
			return fmt.Errorf("%s %s window: %w", b.name, b.dir, err)
		}
		slog.Info("Registered handler", "name", b.name, "dir", b.dir, "start", fmt.Sprintf("0x%04X", b.start), "count", b.count)
	}
	return nil
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
