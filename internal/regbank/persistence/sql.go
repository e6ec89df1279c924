// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ffutop/frequencer/internal/regbank"
)

const upsertRegister = "INSERT INTO register_bank (address, value) VALUES (?, ?) ON CONFLICT(address) DO UPDATE SET value=excluded.value"

// SQLStorage keeps one row per non-default register.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
	bank   *regbank.Bank
}

// NewSQLStorage creates a new SQLStorage.
// Note: The driver (e.g., sqlite3) must be imported by the caller.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{
		driver: driver,
		dsn:    dsn,
	}
}

// Load connects to the DB and loads the stored registers.
func (s *SQLStorage) Load() (*regbank.Bank, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS register_bank (
		address INTEGER PRIMARY KEY,
		value INTEGER
	);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	bank := regbank.New()
	rows, err := db.Query("SELECT address, value FROM register_bank")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query registers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr, val int
		if err := rows.Scan(&addr, &val); err != nil {
			continue
		}
		if addr < 0 || addr >= bank.Len() {
			continue
		}
		bank.Registers[addr] = uint16(val)
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read registers: %w", err)
	}

	s.db = db
	s.bank = bank
	return bank, nil
}

// Save writes every register in one transaction.
func (s *SQLStorage) Save(bank *regbank.Bank) error {
	if s.db == nil {
		return fmt.Errorf("sql storage not loaded")
	}
	values := make([]uint16, bank.Len())
	if err := bank.ReadInto(0, values); err != nil {
		return err
	}
	return s.upsert(0, values)
}

// OnWrite upserts the changed registers.
func (s *SQLStorage) OnWrite(address, quantity uint16) {
	if s.db == nil || s.bank == nil {
		return
	}
	values := make([]uint16, quantity)
	if err := s.bank.ReadInto(address, values); err != nil {
		slog.Error("Failed to read registers for persistence", "address", address, "quantity", quantity, "err", err)
		return
	}
	if err := s.upsert(address, values); err != nil {
		slog.Error("Failed to persist registers", "address", address, "quantity", quantity, "err", err)
	}
}

func (s *SQLStorage) upsert(address uint16, values []uint16) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(upsertRegister)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, v := range values {
		if _, err := stmt.Exec(int(address)+i, int64(v)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
