// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ffutop/frequencer/internal/regbank"
	"github.com/ffutop/frequencer/modbus/ascii"
)

// Config defines the global configuration structure
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Device      DeviceConfig      `mapstructure:"device"`
	Serial      SerialConfig      `mapstructure:"serial"`
	Console     ConsoleConfig     `mapstructure:"console"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Registers   RegistersConfig   `mapstructure:"registers"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// DeviceConfig defines the Modbus identity of the device
type DeviceConfig struct {
	Address         uint8         `mapstructure:"address"`
	Checksum        string        `mapstructure:"checksum"`         // "none" or "lrc"
	FrameMax        int           `mapstructure:"frame_max"`        // Decoded bytes per frame
	PollInterval    time.Duration `mapstructure:"poll_interval"`    // Idle delay between polls
	HandlerCapacity int           `mapstructure:"handler_capacity"` // 0 sizes the tables to the registered handlers
}

// SerialConfig defines the serial line settings
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// ConsoleConfig defines the buffered console sitting on the serial line
type ConsoleConfig struct {
	RxBuffer int `mapstructure:"rx_buffer"`
	TxBuffer int `mapstructure:"tx_buffer"`
}

// PersistenceConfig defines register bank storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap", "sql"
	Path string `mapstructure:"path"` // File path for "file", "mmap" and "sql"
}

// WindowConfig places a handler on the Modbus register map
type WindowConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Base    uint16 `mapstructure:"base"`
	Count   uint16 `mapstructure:"count"`
}

// RegistersConfig defines the register map
type RegistersConfig struct {
	PLL     PLLConfig     `mapstructure:"pll"`
	DAC     DACConfig     `mapstructure:"dac"`
	Counter CounterConfig `mapstructure:"counter"`
	Diag    DiagConfig    `mapstructure:"diag"`
	NVRAM   NVRAMConfig   `mapstructure:"nvram"`
}

type PLLConfig struct {
	WindowConfig `mapstructure:",squash"`
	StickyDelay  time.Duration `mapstructure:"sticky_delay"` // Wait between clearing and reading a sticky register
}

type DACConfig struct {
	WindowConfig `mapstructure:",squash"`
	Offset       uint16 `mapstructure:"offset"` // Register bank offset of the persisted codes
}

type CounterConfig struct {
	WindowConfig `mapstructure:",squash"`
	History      int           `mapstructure:"history"`       // Measurements kept for the average
	PollInterval time.Duration `mapstructure:"poll_interval"` // Delay between gate checks
	SimFrequency float64       `mapstructure:"sim_frequency"` // Input of the simulated gate, Hz
}

type DiagConfig struct {
	WindowConfig `mapstructure:",squash"`
	Reset        uint16 `mapstructure:"reset"` // Address of the write-only reset register
}

type NVRAMConfig struct {
	WindowConfig `mapstructure:",squash"`
	Offset       uint16 `mapstructure:"offset"` // Register bank offset of the window
}

// Flags returns the command line overrides LoadConfig understands.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("frequencer", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.StringP("serial.device", "p", "", "Serial port device name.")
	fs.IntP("serial.baud_rate", "s", 0, "Serial port speed.")
	fs.Uint8P("device.address", "a", 0, "Modbus device address.")
	fs.String("device.checksum", "", "Frame checksum (none, lrc).")
	fs.StringP("log.level", "v", "", "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log.file", "L", "", "Log file name ('-' for logging to STDOUT only).")
	return fs
}

// LoadConfig loads configuration from file, then applies any flag in fs
// the user actually set. fs may be nil.
func LoadConfig(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/frequencer/")
		v.AddConfigPath("$HOME/.frequencer")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	if fs != nil {
		var bindErr error
		fs.Visit(func(f *pflag.Flag) {
			if f.Name == "config" || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(f.Name, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit path the defaults are a complete configuration.
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate / Fixups
	fixupSerial(&config.Serial)
	if err := fixupDevice(&config.Device); err != nil {
		return nil, err
	}
	if err := fixupConsole(&config.Console, config.Device.FrameMax); err != nil {
		return nil, err
	}
	if err := fixupPersistence(&config.Persistence); err != nil {
		return nil, err
	}
	if err := fixupRegisters(&config.Registers); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("device.address", 0)
	v.SetDefault("device.checksum", "none")
	v.SetDefault("device.frame_max", ascii.MaxSize)
	v.SetDefault("device.poll_interval", 5*time.Millisecond)
	v.SetDefault("device.handler_capacity", 0)

	v.SetDefault("serial.device", "/dev/ttyS0")
	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stop_bits", 1)

	v.SetDefault("console.rx_buffer", 1024)
	v.SetDefault("console.tx_buffer", 1024)

	v.SetDefault("persistence.type", "memory")

	v.SetDefault("registers.pll.enabled", true)
	v.SetDefault("registers.pll.base", 0x0000)
	v.SetDefault("registers.pll.count", 0x0100)
	v.SetDefault("registers.pll.sticky_delay", time.Millisecond)

	v.SetDefault("registers.dac.enabled", true)
	v.SetDefault("registers.dac.base", 0x0200)
	v.SetDefault("registers.dac.count", 4)
	v.SetDefault("registers.dac.offset", 0x0F00)

	v.SetDefault("registers.counter.enabled", true)
	v.SetDefault("registers.counter.base", 0x0300)
	v.SetDefault("registers.counter.count", 11)
	v.SetDefault("registers.counter.history", 5000)
	v.SetDefault("registers.counter.poll_interval", time.Millisecond)
	v.SetDefault("registers.counter.sim_frequency", 10e6)

	v.SetDefault("registers.diag.enabled", true)
	v.SetDefault("registers.diag.base", 0x0F00)
	v.SetDefault("registers.diag.count", 16)
	v.SetDefault("registers.diag.reset", 0x0F10)

	v.SetDefault("registers.nvram.enabled", true)
	v.SetDefault("registers.nvram.base", 0x1000)
	v.SetDefault("registers.nvram.count", 0x0100)
	v.SetDefault("registers.nvram.offset", 0x0000)
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 100 * time.Millisecond
	}
}

func fixupDevice(d *DeviceConfig) error {
	d.Checksum = strings.ToLower(strings.TrimSpace(d.Checksum))
	if _, err := ascii.ParseChecksum(d.Checksum); err != nil {
		return err
	}
	if d.FrameMax < ascii.MinSize {
		return fmt.Errorf("device.frame_max %d is below the minimum frame of %d bytes", d.FrameMax, ascii.MinSize)
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 5 * time.Millisecond
	}
	if d.HandlerCapacity < 0 {
		return fmt.Errorf("device.handler_capacity %d is negative", d.HandlerCapacity)
	}
	return nil
}

// FrameChars returns the characters an ASCII frame of frameMax bytes takes
// on the line: the start marker, two hex digits per byte and CR LF.
func FrameChars(frameMax int) int {
	return 1 + 2*frameMax + 2
}

func fixupConsole(c *ConsoleConfig, frameMax int) error {
	need := FrameChars(frameMax)
	if c.RxBuffer < need {
		return fmt.Errorf("console.rx_buffer %d cannot hold a frame of %d characters", c.RxBuffer, need)
	}
	if c.TxBuffer < need {
		return fmt.Errorf("console.tx_buffer %d cannot hold a reply of %d characters", c.TxBuffer, need)
	}
	return nil
}

func fixupPersistence(p *PersistenceConfig) error {
	p.Type = strings.ToLower(p.Type)
	switch p.Type {
	case "", "memory":
		p.Type = "memory"
	case "file", "mmap", "sql":
		if p.Path == "" {
			return fmt.Errorf("persistence type %q requires a path", p.Type)
		}
	default:
		return fmt.Errorf("unknown persistence type %q", p.Type)
	}
	return nil
}

func fixupRegisters(r *RegistersConfig) error {
	windows := []struct {
		name string
		w    WindowConfig
	}{
		{"pll", r.PLL.WindowConfig},
		{"dac", r.DAC.WindowConfig},
		{"counter", r.Counter.WindowConfig},
		{"diag", r.Diag.WindowConfig},
		{"nvram", r.NVRAM.WindowConfig},
	}
	for _, win := range windows {
		if !win.w.Enabled {
			continue
		}
		if win.w.Count == 0 || int(win.w.Base)+int(win.w.Count) > 0x10000 {
			return fmt.Errorf("registers.%s window 0x%04X+%d does not fit the address space", win.name, win.w.Base, win.w.Count)
		}
	}
	if r.DAC.Enabled && r.DAC.Count > 4 {
		r.DAC.Count = 4
	}
	if r.PLL.StickyDelay < 0 {
		r.PLL.StickyDelay = 0
	}
	if r.Counter.History < 1 {
		r.Counter.History = 1
	}
	if r.Counter.PollInterval <= 0 {
		r.Counter.PollInterval = time.Millisecond
	}
	return fixupBank(r)
}

// fixupBank checks the register bank regions of the DAC codes and NVRAM.
func fixupBank(r *RegistersConfig) error {
	type region struct {
		name   string
		offset int
		count  int
	}
	var regions []region
	if r.DAC.Enabled {
		regions = append(regions, region{"dac", int(r.DAC.Offset), int(r.DAC.Count)})
	}
	if r.NVRAM.Enabled {
		regions = append(regions, region{"nvram", int(r.NVRAM.Offset), int(r.NVRAM.Count)})
	}
	for i, a := range regions {
		if a.offset+a.count > regbank.Size {
			return fmt.Errorf("registers.%s bank region 0x%04X+%d exceeds the bank of %d registers", a.name, a.offset, a.count, regbank.Size)
		}
		for _, b := range regions[:i] {
			if a.offset < b.offset+b.count && b.offset < a.offset+a.count {
				return fmt.Errorf("registers.%s bank region 0x%04X+%d overlaps registers.%s at 0x%04X+%d", a.name, a.offset, a.count, b.name, b.offset, b.count)
			}
		}
	}
	return nil
}
