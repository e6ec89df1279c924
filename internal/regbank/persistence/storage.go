// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"log/slog"

	"github.com/ffutop/frequencer/internal/config"
	"github.com/ffutop/frequencer/internal/regbank"
)

// Storage defines the interface for persisting the register bank.
type Storage interface {
	// Load loads the bank from storage, or returns a zeroed bank when
	// nothing was stored yet.
	Load() (*regbank.Bank, error)

	// Save saves the current bank to storage.
	Save(bank *regbank.Bank) error

	// OnWrite is a hook called whenever registers are modified.
	// It allows the storage to perform real-time persistence (e.g. sync to disk or DB).
	OnWrite(address, quantity uint16)

	// Close releases the backing file or database.
	Close() error
}

// Open selects the backend named by cfg, loads the bank and installs the
// write hook. A backend that fails to load is replaced by MemoryStorage.
func Open(cfg config.PersistenceConfig) (Storage, *regbank.Bank) {
	var storage Storage
	switch cfg.Type {
	case "file":
		slog.Info("Initializing register bank with file persistence", "path", cfg.Path)
		storage = NewFileStorage(cfg.Path)
	case "mmap":
		slog.Info("Initializing register bank with MMAP persistence", "path", cfg.Path)
		storage = NewMmapStorage(cfg.Path)
	case "sql":
		// The sqlite3 driver is registered by main.
		slog.Info("Initializing register bank with SQL persistence", "driver", "sqlite3", "dsn", cfg.Path)
		storage = NewSQLStorage("sqlite3", cfg.Path)
	default:
		slog.Info("Initializing register bank with memory storage (non-persistent)")
		storage = NewMemoryStorage()
	}

	bank, err := storage.Load()
	if err != nil {
		slog.Error("Failed to load persistence data", "type", cfg.Type, "err", err)
		slog.Warn("Falling back to MemoryStorage")
		storage = NewMemoryStorage()
		bank, _ = storage.Load()
	}
	bank.SetWriteHook(storage.OnWrite)
	return storage, bank
}
