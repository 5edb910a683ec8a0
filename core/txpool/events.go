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
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// NewReadyTxsEvent is posted when a batch of transactions enters the ready
// set, either on direct admission or through cascading promotion.
type NewReadyTxsEvent struct {
	Hashes []common.Hash
}

// ReadyListener is a bounded subscription for the hashes of transactions that
// became ready. Delivery is best effort: if the buffer is full, notifications
// are dropped rather than blocking pool mutation.
type ReadyListener struct {
	ch     chan common.Hash
	closed atomic.Bool
}

// Chan returns the channel notifications are delivered on.
func (l *ReadyListener) Chan() <-chan common.Hash {
	return l.ch
}

// Close drops the subscription. The pool unregisters the listener on its next
// notification pass.
func (l *ReadyListener) Close() {
	l.closed.Store(true)
}
