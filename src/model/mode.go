package model

import (
	"fmt"
	"strings"
)

// Mode selects the execution path and the table set a process works against.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// ParseMode accepts paper/test and live (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paper", "test", "":
		return ModePaper, nil
	case "live":
		return ModeLive, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected paper or live)", s)
	}
}

func (m Mode) IsPaper() bool { return m != ModeLive }

// OrdersTable returns the orders table for the mode. Paper trading never
// shares rows with live trading.
func (m Mode) OrdersTable() string {
	if m.IsPaper() {
		return "test_orders"
	}
	return "orders"
}

func (m Mode) PositionsTable() string {
	if m.IsPaper() {
		return "test_positions"
	}
	return "positions"
}
