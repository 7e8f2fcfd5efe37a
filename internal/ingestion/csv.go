// Package ingestion loads bars and candidate signals from CSV files
// and live bar feeds. Malformed rows are rejected individually and
// reported, never silently repaired.
package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/idhash"
)

// RowError records a rejected input row with its 1-based line number.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Expected CSV headers.
var (
	barHeader = []string{"instrument", "timestamp_ms", "open", "high", "low", "close", "volume"}

	signalHeader = []string{"signal_id", "instrument", "side", "as_of_ms",
		"entry", "target", "stop", "score", "time_limit_bars", "time_limit_ms"}
)

// LoadBarsFile reads bars from a CSV file.
func LoadBarsFile(path string) ([]*domain.Bar, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()
	return LoadBars(f)
}

// LoadBars reads bars from CSV. Rows failing parsing or Bar.Validate
// are collected as RowErrors; the rest load normally. Only a missing
// or wrong header aborts the whole load.
func LoadBars(r io.Reader) ([]*domain.Bar, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(barHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read bars header: %w", err)
	}
	if err := checkHeader(header, barHeader); err != nil {
		return nil, nil, err
	}

	var bars []*domain.Bar
	var rejects []RowError

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rejects = append(rejects, RowError{Line: line, Err: err})
			continue
		}

		bar, err := parseBarRow(record)
		if err != nil {
			rejects = append(rejects, RowError{Line: line, Err: err})
			continue
		}
		bars = append(bars, bar)
	}

	return bars, rejects, nil
}

// LoadSignalsFile reads candidate signals from a CSV file.
func LoadSignalsFile(path string) ([]*domain.CandidateSignal, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open signals file: %w", err)
	}
	defer f.Close()
	return LoadSignals(f)
}

// LoadSignals reads candidate signals from CSV. An empty signal_id
// gets a deterministic hash assigned; rows violating the signal
// invariants are rejected, never fixed.
func LoadSignals(r io.Reader) ([]*domain.CandidateSignal, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(signalHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read signals header: %w", err)
	}
	if err := checkHeader(header, signalHeader); err != nil {
		return nil, nil, err
	}

	var signals []*domain.CandidateSignal
	var rejects []RowError

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rejects = append(rejects, RowError{Line: line, Err: err})
			continue
		}

		sig, err := parseSignalRow(record)
		if err != nil {
			rejects = append(rejects, RowError{Line: line, Err: err})
			continue
		}
		signals = append(signals, sig)
	}

	return signals, rejects, nil
}

func checkHeader(got, want []string) error {
	for i := range want {
		if strings.TrimSpace(strings.ToLower(got[i])) != want[i] {
			return fmt.Errorf("unexpected header column %d: got %q, want %q", i+1, got[i], want[i])
		}
	}
	return nil
}

func parseBarRow(record []string) (*domain.Bar, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("timestamp_ms: %w", err)
	}

	prices := make([]float64, 5)
	for i, name := range []string{"open", "high", "low", "close", "volume"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[2+i]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		prices[i] = v
	}

	bar := &domain.Bar{
		Instrument:  strings.TrimSpace(record[0]),
		TimestampMs: ts,
		Open:        prices[0],
		High:        prices[1],
		Low:         prices[2],
		Close:       prices[3],
		Volume:      prices[4],
	}
	if err := bar.Validate(); err != nil {
		return nil, err
	}
	return bar, nil
}

func parseSignalRow(record []string) (*domain.CandidateSignal, error) {
	asOf, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("as_of_ms: %w", err)
	}

	floats := make([]float64, 4)
	for i, name := range []string{"entry", "target", "stop", "score"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[4+i]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		floats[i] = v
	}

	limitBars, err := parseOptionalInt(record[8])
	if err != nil {
		return nil, fmt.Errorf("time_limit_bars: %w", err)
	}
	limitMs, err := parseOptionalInt64(record[9])
	if err != nil {
		return nil, fmt.Errorf("time_limit_ms: %w", err)
	}
	if limitBars > 0 && limitMs > 0 {
		return nil, fmt.Errorf("time_limit_bars and time_limit_ms are mutually exclusive")
	}

	sig := &domain.CandidateSignal{
		SignalID:      strings.TrimSpace(record[0]),
		Instrument:    strings.TrimSpace(record[1]),
		Side:          domain.Side(strings.ToUpper(strings.TrimSpace(record[2]))),
		AsOfMs:        asOf,
		Entry:         floats[0],
		Target:        floats[1],
		Stop:          floats[2],
		Score:         floats[3],
		TimeLimitBars: limitBars,
		TimeLimitMs:   limitMs,
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	if sig.SignalID == "" {
		sig.SignalID = idhash.ComputeSignalID(sig.Instrument, string(sig.Side), sig.AsOfMs, sig.Entry, sig.Target, sig.Stop)
	}
	return sig, nil
}

func parseOptionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseOptionalInt64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
