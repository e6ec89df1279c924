// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package serial opens the RS-232/RS-485 line the register console runs on.
package serial

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/grid-x/serial"

	"github.com/ffutop/frequencer/internal/config"
)

// PortConfig maps the serial section of the configuration to the driver's.
func PortConfig(cfg config.SerialConfig) *serial.Config {
	spConfig := &serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.Timeout, // Read timeout
	}
	if cfg.RS485 {
		spConfig.RS485.Enabled = true
		spConfig.RS485.DelayRtsBeforeSend = cfg.DelayRtsBeforeSend
		spConfig.RS485.DelayRtsAfterSend = cfg.DelayRtsAfterSend
		spConfig.RS485.RtsHighDuringSend = cfg.RtsHighDuringSend
		spConfig.RS485.RtsHighAfterSend = cfg.RtsHighAfterSend
		spConfig.RS485.RxDuringTx = cfg.RxDuringTx
	}
	return spConfig
}

// Open opens the configured serial port.
func Open(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	port, err := serial.Open(PortConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", cfg.Device, err)
	}
	slog.Info("Serial port open", "device", cfg.Device, "baudRate", cfg.BaudRate, "dataBits", cfg.DataBits, "parity", cfg.Parity, "stopBits", cfg.StopBits, "rs485", cfg.RS485)
	return port, nil
}
