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

// Package txpool implements the transaction pool of the dev node: a live
// dependency graph that partitions submitted transactions into those that are
// immediately includable in the next block and those blocked on unmet
// preconditions, re-evaluating the partition every time a block is produced.
//
// Transactions declare their preconditions as opaque markers. The pool never
// executes or validates a transaction; it only reasons about the markers,
// promoting blocked transactions as their markers become satisfied and
// pruning includable ones as their markers are mined.
package txpool

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
)

// AddOutcome describes the result of admitting a single transaction.
type AddOutcome struct {
	// Hash of the admitted transaction.
	Hash common.Hash

	// Ready reports whether the transaction entered the ready set. If false,
	// it was parked in the pending set and the remaining fields are empty.
	Ready bool

	// Promoted lists the pending transactions moved to the ready set by the
	// admission cascade.
	Promoted []common.Hash

	// Discarded lists cascaded transactions that failed to enter the ready
	// set. Their failure does not abort the admission.
	Discarded []common.Hash

	// Replaced holds the ready transactions displaced by marker collisions.
	Replaced []*PoolTransaction
}

// PruneResult describes the effect of satisfying a set of mined markers.
type PruneResult struct {
	// Promoted holds the admission outcome of every pending transaction that
	// became ready through the pruned markers.
	Promoted []*AddOutcome

	// Failed lists unlocked transactions that could not be moved to the ready
	// set; they are dropped from the pool.
	Failed []common.Hash

	// Pruned holds the ready transactions removed because their provided
	// markers were mined.
	Pruned []*PoolTransaction
}

// MinedBlockOutcome is handed to the pool by the block producer after a block
// has been assembled and executed.
type MinedBlockOutcome struct {
	BlockNumber uint64
	Included    []*PoolTransaction
	Invalid     []*PoolTransaction
}

// Status is the txpool_status report. Per RPC convention "pending" counts the
// ready (includable) transactions and "queued" the ones blocked on missing
// markers.
type Status struct {
	Pending int
	Queued  int
}

// poolInner owns the two transaction indexes and implements the admission
// algorithm. All access is serialized by the Pool lock.
type poolInner struct {
	ready   *readyTransactions
	pending *pendingTransactions
}

func newPoolInner() *poolInner {
	return &poolInner{
		ready:   newReadyTransactions(),
		pending: newPendingTransactions(),
	}
}

// contains reports whether the hash is tracked in either index.
func (inner *poolInner) contains(hash common.Hash) bool {
	return inner.pending.contains(hash) || inner.ready.contains(hash)
}

// get returns the tracked transaction with the given hash, or nil.
func (inner *poolInner) get(hash common.Hash) *PoolTransaction {
	if tx := inner.ready.get(hash); tx != nil {
		return tx
	}
	return inner.pending.get(hash)
}

// add runs the admission check for a new transaction: a transaction whose
// markers are all satisfied by the current ready set enters the promotion
// cascade, anything else is parked as pending.
func (inner *poolInner) add(tx *PoolTransaction) (*AddOutcome, error) {
	hash := tx.Hash()
	if inner.contains(hash) {
		return nil, ErrAlreadyImported
	}
	pending := newPendingPoolTransaction(tx, inner.ready.provided())
	if !pending.isReady() {
		log.Trace("Parked transaction with missing markers", "hash", hash, "missing", pending.missing.Cardinality())
		inner.pending.add(pending)
		return &AddOutcome{Hash: hash}, nil
	}
	return inner.addReadyTransaction(pending)
}

// addReadyTransaction inserts a ready transaction and drives the promotion
// cascade: every marker the insertion provides may unlock pending
// transactions, which are processed through an explicit FIFO queue. A failure
// of the seed transaction aborts the admission; failures of cascaded
// transactions are recorded and skipped. If the cascade ends up displacing
// the seed itself, the admission is a dependency cycle and is rolled back.
func (inner *poolInner) addReadyTransaction(tx *pendingPoolTransaction) (*AddOutcome, error) {
	hash := tx.transaction.Hash()
	outcome := &AddOutcome{Hash: hash, Ready: true}

	queue := []*pendingPoolTransaction{tx}
	seed := true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		currentHash := current.transaction.Hash()

		replaced, err := inner.ready.add(current)
		if err != nil {
			if seed {
				return nil, err
			}
			// A downstream failure must never abort the whole cascade.
			outcome.Discarded = append(outcome.Discarded, currentHash)
			continue
		}
		if !seed {
			outcome.Promoted = append(outcome.Promoted, currentHash)
		}
		seed = false
		outcome.Replaced = append(outcome.Replaced, replaced...)

		// Wake whatever was blocked on the markers this insertion provides.
		queue = append(queue, inner.pending.markAndUnlock(current.transaction.Provides)...)
	}
	// The cascade evicting its own seed means the admission depends on its
	// own absence: a cycle. Undo the promotions and reject.
	for _, replaced := range outcome.Replaced {
		if replaced.Hash() == hash {
			inner.rollbackPromoted(outcome.Promoted)
			return nil, ErrCyclicTransaction
		}
	}
	return outcome, nil
}

// rollbackPromoted reverts the promotions of a cyclic admission. The cleared
// transactions return to the pending index with their missing markers
// recomputed, since whatever unlocked them is gone together with the seed.
func (inner *poolInner) rollbackPromoted(promoted []common.Hash) {
	for _, tx := range inner.ready.clearTransactions(promoted) {
		pending := newPendingPoolTransaction(tx, inner.ready.provided())
		if pending.isReady() {
			// Still satisfied by surviving providers; nothing to wait on and
			// nothing safe to re-run mid-rollback, so drop it.
			continue
		}
		inner.pending.add(pending)
	}
}

// pruneMarkers processes freshly mined markers: pending transactions waiting
// on them are unlocked and promoted, ready transactions providing them are
// removed as redundant.
func (inner *poolInner) pruneMarkers(markers []Marker) PruneResult {
	var res PruneResult
	for _, marker := range markers {
		unlocked := inner.pending.markAndUnlock([]Marker{marker})
		res.Pruned = append(res.Pruned, inner.ready.pruneMarker(marker)...)

		for _, tx := range unlocked {
			hash := tx.transaction.Hash()
			outcome, err := inner.addReadyTransaction(tx)
			if err != nil {
				res.Failed = append(res.Failed, hash)
				continue
			}
			res.Promoted = append(res.Promoted, outcome)
		}
	}
	return res
}

// removeInvalid drops the given transactions from both indexes, cascading in
// the ready set to anything that required a marker only they provided.
func (inner *poolInner) removeInvalid(hashes []common.Hash) []*PoolTransaction {
	if len(hashes) == 0 {
		return nil
	}
	removed := inner.ready.clearTransactions(hashes)
	return append(removed, inner.pending.remove(hashes)...)
}

// removeByAddress drops every tracked transaction sent by the given address,
// together with the ready-set dependents of the removed ones.
func (inner *poolInner) removeByAddress(sender common.Address) []*PoolTransaction {
	var hashes []common.Hash
	for hash, entry := range inner.ready.ready {
		if entry.ref.transaction.Sender() == sender {
			hashes = append(hashes, hash)
		}
	}
	for hash, tx := range inner.pending.waiting {
		if tx.transaction.Sender() == sender {
			hashes = append(hashes, hash)
		}
	}
	return inner.removeInvalid(hashes)
}

// Pool is the thread safe transaction pool handle: a reader-writer lock
// around the admission state plus an independent listener registry for ready
// transaction notifications. Share it by pointer with every component that
// needs access.
type Pool struct {
	config Config

	mu    sync.RWMutex
	inner *poolInner

	listenersMu sync.Mutex
	listeners   []*ReadyListener

	txFeed event.Feed
	scope  event.SubscriptionScope
}

// New creates a transaction pool to stage validated transactions for block
// production.
func New(config Config) *Pool {
	config = (&config).sanitize()
	return &Pool{
		config: config,
		inner:  newPoolInner(),
	}
}

// Close terminates any active event subscriptions.
func (pool *Pool) Close() error {
	pool.scope.Close()
	return nil
}

// Add admits a validated transaction into the pool. The result reports
// whether the transaction is immediately includable, along with everything
// the admission cascade promoted, discarded or displaced. Listeners are
// notified of the admitted hash and every promoted hash, in that order.
//
// Add fails with ErrAlreadyImported if the hash is already tracked and with
// ErrCyclicTransaction if the admission would evict itself; neither leaves a
// side effect on the pool.
func (pool *Pool) Add(tx *PoolTransaction) (*AddOutcome, error) {
	if tx.Priority == nil {
		tx.Priority = pool.config.Order.priority(tx.Transaction)
	}
	pool.mu.Lock()
	outcome, err := pool.inner.add(tx)
	pool.syncGauges()
	pool.mu.Unlock()

	if err != nil {
		switch err {
		case ErrAlreadyImported:
			knownTxMeter.Mark(1)
		case ErrCyclicTransaction:
			cyclicTxMeter.Mark(1)
			log.Warn("Rejected cyclic transaction", "hash", tx.Hash())
		}
		return nil, err
	}
	if !outcome.Ready {
		addedPendingMeter.Mark(1)
		return outcome, nil
	}
	addedReadyMeter.Mark(1)
	promotedTxMeter.Mark(int64(len(outcome.Promoted)))
	discardedTxMeter.Mark(int64(len(outcome.Discarded)))
	replacedTxMeter.Mark(int64(len(outcome.Replaced)))
	log.Trace("Pooled new ready transaction", "hash", outcome.Hash, "promoted", len(outcome.Promoted), "replaced", len(outcome.Replaced))

	pool.notifyReady(outcome)
	return outcome, nil
}

// Get returns the signed transaction with the given hash if the pool tracks
// it, in either the ready or the pending set.
func (pool *Pool) Get(hash common.Hash) *types.Transaction {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	if tx := pool.inner.get(hash); tx != nil {
		return tx.Transaction.Transaction()
	}
	return nil
}

// Contains reports whether a transaction with the given hash is tracked by
// the pool.
func (pool *Pool) Contains(hash common.Hash) bool {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	return pool.inner.contains(hash)
}

// Status returns the txpool_status report of the pool.
func (pool *Pool) Status() Status {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	return Status{
		Pending: pool.inner.ready.Len(),
		Queued:  pool.inner.pending.Len(),
	}
}

// ReadyIterator returns a restartable snapshot iterator over the includable
// transactions in inclusion order. The block builder consumes this.
func (pool *Pool) ReadyIterator() *TransactionsIterator {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	return pool.inner.ready.iterator()
}

// Ready returns a snapshot of the includable transactions in inclusion order.
func (pool *Pool) Ready() []*PoolTransaction {
	it := pool.ReadyIterator()

	var txs []*PoolTransaction
	for tx := it.Next(); tx != nil; tx = it.Next() {
		txs = append(txs, tx)
	}
	return txs
}

// Pending returns a snapshot of the transactions blocked on missing markers.
func (pool *Pool) Pending() []*PoolTransaction {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	return pool.inner.pending.transactions()
}

// Content returns snapshots of both sides of the pool partition.
func (pool *Pool) Content() (ready, pending []*PoolTransaction) {
	return pool.Ready(), pool.Pending()
}

// OnMinedBlock updates the pool with the outcome of a freshly produced block:
// transactions that turned out invalid are removed together with their
// dependents, then every marker provided by an included transaction is
// pruned. Calls must be serialized by the block producer.
func (pool *Pool) OnMinedBlock(outcome MinedBlockOutcome) PruneResult {
	invalid := make([]common.Hash, 0, len(outcome.Invalid))
	for _, tx := range outcome.Invalid {
		invalid = append(invalid, tx.Hash())
	}
	pool.RemoveInvalid(invalid)

	var markers []Marker
	for _, tx := range outcome.Included {
		markers = append(markers, tx.Provides...)
	}
	return pool.PruneMarkers(outcome.BlockNumber, markers)
}

// PruneMarkers marks the given markers as mined: ready transactions providing
// them are dropped as redundant and pending transactions waiting on them are
// promoted. Promotion failures are reported by hash and do not fail the call.
func (pool *Pool) PruneMarkers(blockNumber uint64, markers []Marker) PruneResult {
	pool.mu.Lock()
	res := pool.inner.pruneMarkers(markers)
	pool.syncGauges()
	pool.mu.Unlock()

	prunedTxMeter.Mark(int64(len(res.Pruned)))
	failedPromoteMeter.Mark(int64(len(res.Failed)))
	if len(res.Pruned) > 0 || len(res.Promoted) > 0 {
		log.Trace("Pruned mined markers", "block", blockNumber, "markers", len(markers), "pruned", len(res.Pruned), "promoted", len(res.Promoted))
	}
	for _, outcome := range res.Promoted {
		promotedTxMeter.Mark(int64(1 + len(outcome.Promoted)))
		pool.notifyReady(outcome)
	}
	return res
}

// RemoveInvalid drops the given transactions and their ready-set dependents,
// returning everything removed. An empty input leaves the pool untouched.
func (pool *Pool) RemoveInvalid(hashes []common.Hash) []*PoolTransaction {
	if len(hashes) == 0 {
		return nil
	}
	pool.mu.Lock()
	removed := pool.inner.removeInvalid(hashes)
	pool.syncGauges()
	pool.mu.Unlock()

	if len(removed) > 0 {
		removedTxMeter.Mark(int64(len(removed)))
		log.Trace("Removed invalid transactions", "requested", len(hashes), "removed", len(removed))
	}
	return removed
}

// RemoveByAddress drops every transaction sent by the given address, plus the
// ready-set dependents of the removed ones, and returns them.
func (pool *Pool) RemoveByAddress(sender common.Address) []*PoolTransaction {
	pool.mu.Lock()
	removed := pool.inner.removeByAddress(sender)
	pool.syncGauges()
	pool.mu.Unlock()

	if len(removed) > 0 {
		removedTxMeter.Mark(int64(len(removed)))
		log.Trace("Removed transactions by sender", "sender", sender, "removed", len(removed))
	}
	return removed
}

// Drop removes the transaction with the given hash from whichever index holds
// it, cascading to its ready-set dependents, and returns it. It returns nil
// if the pool does not track the hash.
func (pool *Pool) Drop(hash common.Hash) *PoolTransaction {
	pool.mu.Lock()
	removed := pool.inner.removeInvalid([]common.Hash{hash})
	pool.syncGauges()
	pool.mu.Unlock()

	for _, tx := range removed {
		if tx.Hash() == hash {
			removedTxMeter.Mark(int64(len(removed)))
			return tx
		}
	}
	return nil
}

// Clear empties both indexes. Listener registrations survive.
func (pool *Pool) Clear() {
	pool.mu.Lock()
	pool.inner.ready.clear()
	pool.inner.pending.clear()
	pool.syncGauges()
	pool.mu.Unlock()
}

// AddReadyListener registers a bounded notification channel for the hashes of
// transactions becoming ready. Notifications that do not fit the buffer are
// dropped; closing the listener unregisters it.
func (pool *Pool) AddReadyListener() *ReadyListener {
	l := &ReadyListener{ch: make(chan common.Hash, pool.config.ListenerBuffer)}
	pool.listenersMu.Lock()
	pool.listeners = append(pool.listeners, l)
	pool.listenersMu.Unlock()
	return l
}

// SubscribeReadyTxs registers an event feed subscription delivering a
// NewReadyTxsEvent per admission or promotion batch.
func (pool *Pool) SubscribeReadyTxs(ch chan<- NewReadyTxsEvent) event.Subscription {
	return pool.scope.Track(pool.txFeed.Subscribe(ch))
}

// notifyReady fans out the hashes of an admission outcome, the admitted hash
// first and the promoted ones after, to all registered listeners and feed
// subscribers.
func (pool *Pool) notifyReady(outcome *AddOutcome) {
	hashes := make([]common.Hash, 0, 1+len(outcome.Promoted))
	hashes = append(hashes, outcome.Hash)
	hashes = append(hashes, outcome.Promoted...)

	pool.listenersMu.Lock()
	for _, hash := range hashes {
		pool.notifyHash(hash)
	}
	pool.listenersMu.Unlock()

	pool.txFeed.Send(NewReadyTxsEvent{Hashes: hashes})
}

// notifyHash delivers one hash to every live listener. The pass retains
// listeners while sending, so each entry is attempted exactly once: a full
// buffer keeps the listener but drops the notification, a closed listener is
// unregistered. Callers hold listenersMu.
func (pool *Pool) notifyHash(hash common.Hash) {
	kept := pool.listeners[:0]
	for _, l := range pool.listeners {
		if l.closed.Load() {
			staleListenerMeter.Mark(1)
			continue
		}
		select {
		case l.ch <- hash:
		default:
			droppedNotifyMeter.Mark(1)
		}
		kept = append(kept, l)
	}
	for i := len(kept); i < len(pool.listeners); i++ {
		pool.listeners[i] = nil
	}
	pool.listeners = kept
}

// syncGauges publishes the current partition sizes. Callers hold the pool
// lock.
func (pool *Pool) syncGauges() {
	readyGauge.Update(int64(pool.inner.ready.Len()))
	pendingGauge.Update(int64(pool.inner.pending.Len()))
}
