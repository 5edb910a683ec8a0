// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package txpool

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// TransactionOrder determines the priority metric assigned to transactions on
// admission, and with it the inclusion order of the ready set.
type TransactionOrder int

const (
	// FifoOrder keeps ready transactions in the order they arrived. Every
	// transaction gets the same priority, so the arrival id decides.
	FifoOrder TransactionOrder = iota

	// FeesOrder prioritizes ready transactions by the fees paid to the miner.
	FeesOrder
)

// ParseTransactionOrder resolves an order mode from its textual form.
func ParseTransactionOrder(s string) (TransactionOrder, error) {
	switch strings.ToLower(s) {
	case "fifo":
		return FifoOrder, nil
	case "fees":
		return FeesOrder, nil
	default:
		return 0, fmt.Errorf("unknown transaction order: %q", s)
	}
}

func (order TransactionOrder) String() string {
	switch order {
	case FifoOrder:
		return "fifo"
	case FeesOrder:
		return "fees"
	default:
		return fmt.Sprintf("unknown(%d)", int(order))
	}
}

// priority returns the ordering metric for a transaction under this mode.
func (order TransactionOrder) priority(tx *PendingTransaction) *uint256.Int {
	if order == FeesOrder {
		if price, overflow := uint256.FromBig(tx.GasPrice()); !overflow {
			return price
		}
	}
	return new(uint256.Int)
}

// Config are the configuration parameters of the transaction pool.
type Config struct {
	Order          TransactionOrder // Inclusion order of ready transactions
	ListenerBuffer int              // Channel capacity handed out by AddReadyListener
}

// DefaultConfig contains the default configurations for the transaction pool.
var DefaultConfig = Config{
	Order:          FeesOrder,
	ListenerBuffer: 2048,
}

// sanitize checks the provided user configurations and changes anything that's
// unreasonable or unworkable.
func (config *Config) sanitize() Config {
	conf := *config
	if conf.ListenerBuffer < 1 {
		log.Warn("Sanitizing invalid txpool listener buffer", "provided", conf.ListenerBuffer, "updated", DefaultConfig.ListenerBuffer)
		conf.ListenerBuffer = DefaultConfig.ListenerBuffer
	}
	return conf
}
