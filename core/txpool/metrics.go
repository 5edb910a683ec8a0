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

import "github.com/ethereum/go-ethereum/metrics"

var (
	// readyGauge and pendingGauge track the current partition of the pool.
	readyGauge   = metrics.NewRegisteredGauge("txpool/ready", nil)
	pendingGauge = metrics.NewRegisteredGauge("txpool/pending", nil)

	// Admission outcome meters.
	knownTxMeter       = metrics.NewRegisteredMeter("txpool/known", nil)         // Resubmissions of an already tracked hash
	addedReadyMeter    = metrics.NewRegisteredMeter("txpool/added/ready", nil)   // Transactions admitted straight into the ready set
	addedPendingMeter  = metrics.NewRegisteredMeter("txpool/added/pending", nil) // Transactions parked with missing markers
	cyclicTxMeter      = metrics.NewRegisteredMeter("txpool/cyclic", nil)        // Admissions rolled back as dependency cycles
	promotedTxMeter    = metrics.NewRegisteredMeter("txpool/promoted", nil)      // Pending transactions promoted by cascades
	discardedTxMeter   = metrics.NewRegisteredMeter("txpool/discarded", nil)     // Cascaded transactions that failed to insert
	replacedTxMeter    = metrics.NewRegisteredMeter("txpool/replaced", nil)      // Ready transactions displaced by marker collisions
	prunedTxMeter      = metrics.NewRegisteredMeter("txpool/pruned", nil)        // Ready transactions removed as mined
	removedTxMeter     = metrics.NewRegisteredMeter("txpool/removed", nil)       // Transactions removed as invalid or by request
	failedPromoteMeter = metrics.NewRegisteredMeter("txpool/failedpromote", nil) // Unlocked transactions dropped during pruning
	droppedNotifyMeter = metrics.NewRegisteredMeter("txpool/notify/dropped", nil)
	staleListenerMeter = metrics.NewRegisteredMeter("txpool/notify/stale", nil)
)
