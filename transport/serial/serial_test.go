// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package serial

import (
	"testing"
	"time"

	"github.com/ffutop/frequencer/internal/config"
)

func TestPortConfig(t *testing.T) {
	cfg := config.SerialConfig{
		Device:             "/dev/ttyUSB0",
		BaudRate:           115200,
		DataBits:           8,
		Parity:             "N",
		StopBits:           1,
		Timeout:            100 * time.Millisecond,
		RS485:              true,
		DelayRtsBeforeSend: time.Millisecond,
		RtsHighDuringSend:  true,
	}

	got := PortConfig(cfg)
	if got.Address != cfg.Device || got.BaudRate != 115200 || got.Parity != "N" || got.Timeout != cfg.Timeout {
		t.Errorf("PortConfig() = %+v", got)
	}
	if !got.RS485.Enabled || got.RS485.DelayRtsBeforeSend != time.Millisecond || !got.RS485.RtsHighDuringSend {
		t.Errorf("RS485 = %+v", got.RS485)
	}

	cfg.RS485 = false
	if got := PortConfig(cfg); got.RS485.Enabled || got.RS485.RtsHighDuringSend {
		t.Errorf("RS485 set without rs485: %+v", got.RS485)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	cfg := config.SerialConfig{Device: "/dev/does-not-exist", BaudRate: 9600, DataBits: 8, Parity: "N", StopBits: 1}
	if _, err := Open(cfg); err == nil {
		t.Errorf("Open() error = nil, want error")
	}
}
