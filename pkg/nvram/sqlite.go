package nvram

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDevice keeps the storage image in a SQLite table, one row per
// written cell, together with a per-cell write counter.
type SQLiteDevice struct {
	db     *sql.DB
	dbPath string
	size   int
	erased byte
}

// NewSQLiteDevice opens (creating if needed) the database at dbPath.
func NewSQLiteDevice(dbPath string, size int, erased byte) (*SQLiteDevice, error) {
	if dbPath == "" {
		dbPath = "./microfm.db"
	}
	dev := &SQLiteDevice{
		dbPath: dbPath,
		size:   size,
		erased: erased,
	}

	if err := dev.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize nvram store: %w", err)
	}
	return dev, nil
}

func (d *SQLiteDevice) initialize() error {
	if err := os.MkdirAll(filepath.Dir(d.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := d.dbPath + "?_busy_timeout=10000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; the engine goroutine owns the device.
	db.SetMaxOpenConns(1)
	d.db = db

	schema := `
	CREATE TABLE IF NOT EXISTS nvram (
		address INTEGER PRIMARY KEY,
		value INTEGER NOT NULL CHECK (value BETWEEN 0 AND 255),
		writes INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := d.db.Exec(schema); err != nil {
		d.db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (d *SQLiteDevice) check(addr uint16) error {
	if int(addr) >= d.size {
		return fmt.Errorf("%w: 0x%04x", ErrAddressRange, addr)
	}
	return nil
}

func (d *SQLiteDevice) Read(addr uint16) (byte, error) {
	if err := d.check(addr); err != nil {
		return 0, err
	}
	var v int
	err := d.db.QueryRow(`SELECT value FROM nvram WHERE address = ?`, addr).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return d.erased, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read 0x%04x: %w", addr, err)
	}
	return byte(v), nil
}

func (d *SQLiteDevice) Write(addr uint16, v byte) error {
	if err := d.check(addr); err != nil {
		return err
	}
	_, err := d.db.Exec(`
		INSERT INTO nvram (address, value, writes) VALUES (?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			value = excluded.value,
			writes = nvram.writes + 1,
			updated_at = CURRENT_TIMESTAMP`, addr, int(v))
	if err != nil {
		return fmt.Errorf("failed to write 0x%04x: %w", addr, err)
	}
	return nil
}

// Wear lists every written cell in address order.
func (d *SQLiteDevice) Wear() ([]Cell, error) {
	rows, err := d.db.Query(`SELECT address, value, writes FROM nvram ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("failed to query wear: %w", err)
	}
	defer rows.Close()

	var cells []Cell
	for rows.Next() {
		var c Cell
		var addr, value int
		if err := rows.Scan(&addr, &value, &c.Writes); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		c.Address = uint16(addr)
		c.Value = byte(value)
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// Erase drops every cell so the device reads as freshly erased.
func (d *SQLiteDevice) Erase() error {
	if _, err := d.db.Exec(`DELETE FROM nvram`); err != nil {
		return fmt.Errorf("failed to erase: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *SQLiteDevice) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
