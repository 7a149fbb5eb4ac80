// Package status writes the operator-facing status, books, and positions
// files, each overwritten atomically (write-temp-then-rename) on every
// trading-loop tick so a concurrently running monitoring tool never reads
// a half-written file.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fransolofran/mesita-go/internal/core"
)

// Status is the top-level snapshot written to the status file.
type Status struct {
	Timestamp      time.Time         `json:"ts"`
	Environment    string            `json:"environment"`
	Mode           string            `json:"mode"`
	TradingEnabled bool              `json:"trading_enabled"`
	CashARS        float64           `json:"cash_ars"`
	CashUSD        float64           `json:"cash_usd"`
	ReferencePair  string            `json:"reference_pair,omitempty"`
	RefA2U         *float64          `json:"ref_a2u,omitempty"`
	RefU2A         *float64          `json:"ref_u2a,omitempty"`
	HalfLifeMillis int64             `json:"half_life_ms"`
	Tunables       map[string]any    `json:"tunables"`
}

// BookEntry is one symbol's top of book, as published in the books file.
type BookEntry struct {
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	BidQty float64   `json:"bid_qty"`
	AskQty float64   `json:"ask_qty"`
	Ts     time.Time `json:"ts"`
}

// Books is the full top-level snapshot written to the books file.
type Books struct {
	Timestamp time.Time            `json:"ts"`
	Books     map[string]BookEntry `json:"books"`
}

// PositionsSnapshot is the top-level snapshot written to the positions file.
type PositionsSnapshot struct {
	Timestamp time.Time        `json:"ts"`
	Positions map[string]int64 `json:"positions"`
	CashARS   float64          `json:"cash_ars"`
	CashUSD   float64          `json:"cash_usd"`
}

// Writer owns the three output file paths and writes each atomically.
type Writer struct {
	StatusPath    string
	BooksPath     string
	PositionsPath string
}

func NewWriter(statusPath, booksPath, positionsPath string) *Writer {
	return &Writer{StatusPath: statusPath, BooksPath: booksPath, PositionsPath: positionsPath}
}

func (w *Writer) WriteStatus(s Status) error {
	return writeAtomic(w.StatusPath, s)
}

// WriteBooksFromSnapshot converts a quote-cache snapshot into the on-disk
// books shape.
func WriteBooksFromSnapshot(quotes map[string]core.TopOfBook, ts time.Time) Books {
	books := make(map[string]BookEntry, len(quotes))
	for symbol, q := range quotes {
		books[symbol] = BookEntry{
			Bid:    q.Bid,
			Ask:    q.Ask,
			BidQty: q.BidQty,
			AskQty: q.AskQty,
			Ts:     q.Timestamp,
		}
	}
	return Books{Timestamp: ts, Books: books}
}

func (w *Writer) WriteBooks(b Books) error {
	return writeAtomic(w.BooksPath, b)
}

func (w *Writer) WritePositions(p PositionsSnapshot) error {
	return writeAtomic(w.PositionsPath, p)
}

func writeAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", filepath.Base(path), err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file for %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file for %s: %w", filepath.Base(path), err)
	}
	return nil
}
