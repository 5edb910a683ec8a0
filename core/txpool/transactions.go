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
	"container/heap"
	"encoding/binary"
	"math/big"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// markerLength is the encoded size of a marker: an 8 byte nonce followed by a
// 20 byte address.
const markerLength = 8 + common.AddressLength

// Marker is a unique identifier for a precondition or postcondition of a
// transaction. The pool treats markers as opaque values; the canonical marker
// is the (sender, nonce) slot a transaction occupies.
type Marker [markerLength]byte

// MarkerForNonce creates the marker identifying the given (nonce, sender)
// combination.
func MarkerForNonce(nonce uint64, from common.Address) Marker {
	var m Marker
	binary.LittleEndian.PutUint64(m[:8], nonce)
	copy(m[8:], from.Bytes())
	return m
}

// PendingTransaction is a fully validated, signed transaction with its sender
// already recovered. Signature, balance and gas checks happen before a
// transaction reaches the pool; the pool trusts the content as final.
type PendingTransaction struct {
	tx     *types.Transaction
	sender common.Address
}

// NewPendingTransaction pairs a validated transaction with its resolved sender.
func NewPendingTransaction(tx *types.Transaction, sender common.Address) *PendingTransaction {
	return &PendingTransaction{tx: tx, sender: sender}
}

// Hash returns the transaction hash.
func (tx *PendingTransaction) Hash() common.Hash { return tx.tx.Hash() }

// Sender returns the recovered sender address.
func (tx *PendingTransaction) Sender() common.Address { return tx.sender }

// Nonce returns the sender account nonce of the transaction.
func (tx *PendingTransaction) Nonce() uint64 { return tx.tx.Nonce() }

// GasPrice returns the gas price (or gas fee cap) of the transaction.
func (tx *PendingTransaction) GasPrice() *big.Int { return tx.tx.GasPrice() }

// Transaction returns the underlying signed transaction.
func (tx *PendingTransaction) Transaction() *types.Transaction { return tx.tx }

// PoolTransaction is the internal representation of a transaction in the pool:
// the validated payload plus the dependency markers the admission algorithm
// reasons about. It is immutable once handed to the pool and shared by pointer
// between the pool and callers inspecting removal results.
type PoolTransaction struct {
	// Transaction is the validated payload.
	Transaction *PendingTransaction

	// Requires are the markers that must be satisfied before this transaction
	// becomes includable.
	Requires []Marker

	// Provides are the markers satisfied once this transaction is included.
	Provides []Marker

	// Priority orders this transaction against others whose markers are all
	// satisfied. Assigned by the pool on admission from the configured order.
	Priority *uint256.Int
}

// NewPoolTransaction wraps a validated transaction with its dependency markers.
func NewPoolTransaction(tx *PendingTransaction, requires, provides []Marker) *PoolTransaction {
	return &PoolTransaction{Transaction: tx, Requires: requires, Provides: provides}
}

// PoolTransactionFor wraps a validated transaction with the canonical nonce
// markers: the transaction provides its own (sender, nonce) slot and, if its
// nonce is ahead of the sender's on-chain nonce, requires the slot right
// before it.
func PoolTransactionFor(tx *PendingTransaction, onchainNonce uint64) *PoolTransaction {
	var requires []Marker
	if tx.Nonce() > onchainNonce {
		requires = append(requires, MarkerForNonce(tx.Nonce()-1, tx.Sender()))
	}
	provides := []Marker{MarkerForNonce(tx.Nonce(), tx.Sender())}
	return NewPoolTransaction(tx, requires, provides)
}

// Hash returns the hash of the wrapped transaction.
func (tx *PoolTransaction) Hash() common.Hash { return tx.Transaction.Hash() }

// Sender returns the sender of the wrapped transaction.
func (tx *PoolTransaction) Sender() common.Address { return tx.Transaction.Sender() }

// pendingPoolTransaction annotates a pool transaction with the markers still
// missing relative to the ready set at the time it was wrapped. The missing
// set is only ever shrunk by explicit marker events, never re-derived.
type pendingPoolTransaction struct {
	transaction *PoolTransaction
	missing     mapset.Set[Marker]
	addedAt     time.Time
}

// newPendingPoolTransaction determines the markers that are still missing
// before the transaction can be moved to the ready set, relative to the given
// snapshot of provided markers.
func newPendingPoolTransaction(tx *PoolTransaction, provided map[Marker]common.Hash) *pendingPoolTransaction {
	missing := mapset.NewThreadUnsafeSet[Marker]()
	for _, marker := range tx.Requires {
		if _, ok := provided[marker]; !ok {
			missing.Add(marker)
		}
	}
	return &pendingPoolTransaction{transaction: tx, missing: missing, addedAt: time.Now()}
}

// mark checks off a single required marker.
func (tx *pendingPoolTransaction) mark(marker Marker) {
	tx.missing.Remove(marker)
}

// isReady reports whether every required marker is satisfied.
func (tx *pendingPoolTransaction) isReady() bool {
	return tx.missing.IsEmpty()
}

// pendingTransactions holds the transactions blocked on at least one
// unsatisfied marker, indexed by each missing marker so that satisfying one
// marker yields exactly the transactions it unblocks.
type pendingTransactions struct {
	// requiredMarkers maps markers not yet provided by the ready set to the
	// waiting transactions requiring them.
	requiredMarkers map[Marker]map[common.Hash]struct{}

	// waiting contains the blocked transactions keyed by hash.
	waiting map[common.Hash]*pendingPoolTransaction
}

func newPendingTransactions() *pendingTransactions {
	return &pendingTransactions{
		requiredMarkers: make(map[Marker]map[common.Hash]struct{}),
		waiting:         make(map[common.Hash]*pendingPoolTransaction),
	}
}

// Len returns the number of blocked transactions.
func (p *pendingTransactions) Len() int { return len(p.waiting) }

// contains reports whether the transaction is blocked in this index.
func (p *pendingTransactions) contains(hash common.Hash) bool {
	_, ok := p.waiting[hash]
	return ok
}

// get returns the blocked transaction with the given hash, or nil.
func (p *pendingTransactions) get(hash common.Hash) *PoolTransaction {
	if tx, ok := p.waiting[hash]; ok {
		return tx.transaction
	}
	return nil
}

// transactions returns a snapshot of all blocked transactions.
func (p *pendingTransactions) transactions() []*PoolTransaction {
	txs := make([]*PoolTransaction, 0, len(p.waiting))
	for _, tx := range p.waiting {
		txs = append(txs, tx.transaction)
	}
	return txs
}

// add parks a transaction with unsatisfied markers. The caller guarantees the
// transaction is not ready and not yet tracked.
func (p *pendingTransactions) add(tx *pendingPoolTransaction) {
	hash := tx.transaction.Hash()
	tx.missing.Each(func(marker Marker) bool {
		waiters, ok := p.requiredMarkers[marker]
		if !ok {
			waiters = make(map[common.Hash]struct{})
			p.requiredMarkers[marker] = waiters
		}
		waiters[hash] = struct{}{}
		return false
	})
	p.waiting[hash] = tx
}

// markAndUnlock checks off the given markers on all waiting transactions and
// returns those that have no missing markers left. A transaction waiting on
// several of the markers is surfaced once per satisfied marker internally, but
// only returned once all of them are checked off.
func (p *pendingTransactions) markAndUnlock(markers []Marker) []*pendingPoolTransaction {
	var unlocked []*pendingPoolTransaction
	for _, marker := range markers {
		waiters, ok := p.requiredMarkers[marker]
		if !ok {
			continue
		}
		delete(p.requiredMarkers, marker)
		for hash := range waiters {
			tx, ok := p.waiting[hash]
			if !ok {
				continue
			}
			tx.mark(marker)
			if tx.isReady() {
				delete(p.waiting, hash)
				unlocked = append(unlocked, tx)
			}
		}
	}
	return unlocked
}

// remove drops the transactions with the given hashes and returns them.
func (p *pendingTransactions) remove(hashes []common.Hash) []*PoolTransaction {
	var removed []*PoolTransaction
	for _, hash := range hashes {
		tx, ok := p.waiting[hash]
		if !ok {
			continue
		}
		delete(p.waiting, hash)
		tx.missing.Each(func(marker Marker) bool {
			if waiters, ok := p.requiredMarkers[marker]; ok {
				delete(waiters, hash)
				if len(waiters) == 0 {
					delete(p.requiredMarkers, marker)
				}
			}
			return false
		})
		removed = append(removed, tx.transaction)
	}
	return removed
}

// clear drops the internal state.
func (p *pendingTransactions) clear() {
	p.requiredMarkers = make(map[Marker]map[common.Hash]struct{})
	p.waiting = make(map[common.Hash]*pendingPoolTransaction)
}

// poolTxRef identifies a transaction in the ready set together with its
// arrival id, which breaks ordering ties between equal priorities.
type poolTxRef struct {
	id          uint64
	transaction *PoolTransaction
}

// precedes reports whether this transaction should be included before the
// other one: higher priority wins, earlier arrival breaks ties.
func (ref *poolTxRef) precedes(other *poolTxRef) bool {
	if c := ref.transaction.Priority.Cmp(other.transaction.Priority); c != 0 {
		return c > 0
	}
	return ref.id < other.id
}

// readyTx is a transaction in the ready set together with its dependency
// links: the transactions it unlocks and the number of its required markers
// that are satisfied without an in-pool provider.
type readyTx struct {
	ref            *poolTxRef
	unlocks        []common.Hash
	requiresOffset int
}

// readyTransactions holds the transactions whose every required marker is
// satisfied, indexed by hash and by provided marker. The union of Provides
// across all contained transactions always equals the provided marker index.
type readyTransactions struct {
	// id is the arrival counter; assigned ids determine submission order.
	id uint64

	// providedMarkers maps each marker to the hash of the ready transaction
	// providing it.
	providedMarkers map[Marker]common.Hash

	// ready contains all includable transactions keyed by hash.
	ready map[common.Hash]*readyTx

	// independent tracks the transactions with no in-pool dependency; they
	// seed the inclusion-order iteration.
	independent map[common.Hash]*poolTxRef
}

func newReadyTransactions() *readyTransactions {
	return &readyTransactions{
		providedMarkers: make(map[Marker]common.Hash),
		ready:           make(map[common.Hash]*readyTx),
		independent:     make(map[common.Hash]*poolTxRef),
	}
}

// Len returns the number of ready transactions.
func (r *readyTransactions) Len() int { return len(r.ready) }

// contains reports whether the transaction is in the ready set.
func (r *readyTransactions) contains(hash common.Hash) bool {
	_, ok := r.ready[hash]
	return ok
}

// get returns the ready transaction with the given hash, or nil.
func (r *readyTransactions) get(hash common.Hash) *PoolTransaction {
	if entry, ok := r.ready[hash]; ok {
		return entry.ref.transaction
	}
	return nil
}

// provided returns the marker index of the ready set. The result is the live
// map; callers hold the pool lock and must not retain it.
func (r *readyTransactions) provided() map[Marker]common.Hash {
	return r.providedMarkers
}

func (r *readyTransactions) nextID() uint64 {
	id := r.id
	r.id++
	return id
}

// add inserts a transaction whose markers are all satisfied. Any ready
// transactions displaced by marker collisions are removed, together with their
// dependents when the colliding markers are not re-provided, and returned. The
// displaced provider's unlock links carry over to the new transaction.
func (r *readyTransactions) add(tx *pendingPoolTransaction) ([]*PoolTransaction, error) {
	if !tx.isReady() {
		return nil, errNotReady
	}
	hash := tx.transaction.Hash()
	if _, ok := r.ready[hash]; ok {
		return nil, ErrAlreadyImported
	}
	replaced, unlocks := r.replace(tx.transaction)

	id := r.nextID()

	// Link the transactions that unlock this one. A required marker without a
	// live in-pool provider counts as inherently satisfied.
	independent := true
	requiresOffset := 0
	for _, marker := range tx.transaction.Requires {
		provider, ok := r.providedMarkers[marker]
		if !ok {
			requiresOffset++
			continue
		}
		entry, ok := r.ready[provider]
		if !ok {
			requiresOffset++
			continue
		}
		entry.unlocks = append(entry.unlocks, hash)
		independent = false
	}
	for _, marker := range tx.transaction.Provides {
		r.providedMarkers[marker] = hash
	}
	ref := &poolTxRef{id: id, transaction: tx.transaction}
	if independent {
		r.independent[hash] = ref
	}
	r.ready[hash] = &readyTx{ref: ref, unlocks: unlocks, requiresOffset: requiresOffset}
	return replaced, nil
}

// replace removes the current providers of any marker the new transaction
// provides. The removal keeps the markers the new transaction re-provides, so
// dependents of a displaced same-slot provider survive and are rewired onto
// the replacement via the returned unlock links.
func (r *readyTransactions) replace(tx *PoolTransaction) (removed []*PoolTransaction, unlocks []common.Hash) {
	displaced := make(map[common.Hash]struct{})
	for _, marker := range tx.Provides {
		if hash, ok := r.providedMarkers[marker]; ok {
			displaced[hash] = struct{}{}
		}
	}
	if len(displaced) == 0 {
		return nil, nil
	}
	keep := make(map[Marker]struct{}, len(tx.Provides))
	for _, marker := range tx.Provides {
		keep[marker] = struct{}{}
	}
	hashes := make([]common.Hash, 0, len(displaced))
	for hash := range displaced {
		hashes = append(hashes, hash)
		if entry, ok := r.ready[hash]; ok {
			unlocks = append(unlocks, entry.unlocks...)
		}
	}
	return r.removeWithMarkers(hashes, keep), unlocks
}

// clearTransactions removes the given transactions and everything depending
// on a marker only they provided.
func (r *readyTransactions) clearTransactions(hashes []common.Hash) []*PoolTransaction {
	return r.removeWithMarkers(hashes, nil)
}

// removeWithMarkers removes the given transactions and, transitively, every
// dependent of a marker that became unprovided. Markers in the keep filter
// stay in the index and do not cascade.
func (r *readyTransactions) removeWithMarkers(hashes []common.Hash, keep map[Marker]struct{}) []*PoolTransaction {
	var removed []*PoolTransaction
	queue := slices.Clone(hashes)
	for len(queue) > 0 {
		hash := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		entry, ok := r.ready[hash]
		if !ok {
			continue
		}
		delete(r.ready, hash)
		delete(r.independent, hash)

		invalidated := false
		for _, marker := range entry.ref.transaction.Provides {
			if _, ok := keep[marker]; ok {
				continue
			}
			delete(r.providedMarkers, marker)
			invalidated = true
		}
		// Unhook the removed transaction from whatever was unlocking it.
		for _, marker := range entry.ref.transaction.Requires {
			if provider, ok := r.providedMarkers[marker]; ok {
				if prev, ok := r.ready[provider]; ok {
					prev.unlocks = removeHash(prev.unlocks, hash)
				}
			}
		}
		if invalidated {
			queue = append(queue, entry.unlocks...)
		}
		removed = append(removed, entry.ref.transaction)
	}
	return removed
}

// pruneMarker removes the transaction providing a freshly mined marker. It
// also prunes upstream transactions left without any dependent, since the
// mined transaction depended on them, and promotes downstream transactions
// into the independent set as their last in-pool dependency disappears.
func (r *readyTransactions) pruneMarker(marker Marker) []*PoolTransaction {
	var pruned []*PoolTransaction

	stack := []Marker{marker}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		hash, ok := r.providedMarkers[current]
		if !ok {
			continue
		}
		delete(r.providedMarkers, current)
		entry, ok := r.ready[hash]
		if !ok {
			continue
		}
		delete(r.ready, hash)
		delete(r.independent, hash)
		tx := entry.ref.transaction

		// Walk upstream: a provider whose unlock list drains held only mined
		// work and is itself prunable.
		for _, required := range tx.Requires {
			providerHash, ok := r.providedMarkers[required]
			if !ok {
				continue
			}
			provider, ok := r.ready[providerHash]
			if !ok {
				continue
			}
			provider.unlocks = removeHash(provider.unlocks, hash)
			if len(provider.unlocks) == 0 {
				stack = append(stack, provider.ref.transaction.Provides...)
			}
		}
		// Walk downstream: dependents with no other in-pool dependency become
		// independent.
		for _, unlocked := range entry.unlocks {
			if next, ok := r.ready[unlocked]; ok {
				next.requiresOffset++
				if next.requiresOffset == len(next.ref.transaction.Requires) {
					r.independent[unlocked] = next.ref
				}
			}
		}
		// Drop the remaining markers the pruned transaction provided.
		for _, provided := range tx.Provides {
			if provided != current {
				delete(r.providedMarkers, provided)
			}
		}
		pruned = append(pruned, tx)
	}
	return pruned
}

// clear drops the internal state.
func (r *readyTransactions) clear() {
	r.providedMarkers = make(map[Marker]common.Hash)
	r.ready = make(map[common.Hash]*readyTx)
	r.independent = make(map[common.Hash]*poolTxRef)
}

// iterator snapshots the ready set into an inclusion-order iterator. The
// snapshot is restartable and unaffected by later pool mutation.
func (r *readyTransactions) iterator() *TransactionsIterator {
	it := &TransactionsIterator{
		all:         make(map[common.Hash]*snapshotTx, len(r.ready)),
		awaiting:    make(map[common.Hash]*awaitingTx),
		independent: make(txRefHeap, 0, len(r.independent)),
	}
	for hash, entry := range r.ready {
		it.all[hash] = &snapshotTx{
			ref:            entry.ref,
			unlocks:        slices.Clone(entry.unlocks),
			requiresOffset: entry.requiresOffset,
		}
	}
	for _, ref := range r.independent {
		it.independent = append(it.independent, ref)
	}
	heap.Init(&it.independent)
	return it
}

// snapshotTx is a frozen readyTx inside an iterator snapshot.
type snapshotTx struct {
	ref            *poolTxRef
	unlocks        []common.Hash
	requiresOffset int
}

// awaitingTx tracks how many dependencies of a not-yet-includable transaction
// the iterator has already yielded.
type awaitingTx struct {
	satisfied int
	ref       *poolTxRef
}

// TransactionsIterator walks a snapshot of the ready set in inclusion order:
// priority descending, arrival order breaking ties, with every in-pool
// dependency yielded before its dependents.
type TransactionsIterator struct {
	all         map[common.Hash]*snapshotTx
	awaiting    map[common.Hash]*awaitingTx
	independent txRefHeap
}

// Next returns the next includable transaction, or nil once the snapshot is
// exhausted.
func (it *TransactionsIterator) Next() *PoolTransaction {
	for it.independent.Len() > 0 {
		best := heap.Pop(&it.independent).(*poolTxRef)
		hash := best.transaction.Hash()

		entry, ok := it.all[hash]
		if !ok {
			continue
		}
		delete(it.all, hash)

		// Surface the transactions this one unlocks; they become includable
		// once their last dependency has been yielded.
		for _, unlocked := range entry.unlocks {
			if waiting, ok := it.awaiting[unlocked]; ok {
				delete(it.awaiting, unlocked)
				it.schedule(waiting.satisfied+1, waiting.ref)
			} else if next, ok := it.all[unlocked]; ok {
				it.schedule(next.requiresOffset+1, next.ref)
			}
		}
		return entry.ref.transaction
	}
	return nil
}

// schedule inserts the ref either into the includable heap or the awaiting
// set, depending on how many of its requirements are satisfied.
func (it *TransactionsIterator) schedule(satisfied int, ref *poolTxRef) {
	if satisfied >= len(ref.transaction.Requires) {
		heap.Push(&it.independent, ref)
	} else {
		it.awaiting[ref.transaction.Hash()] = &awaitingTx{satisfied: satisfied, ref: ref}
	}
}

// txRefHeap is a max-heap of transaction refs ordered by inclusion precedence.
type txRefHeap []*poolTxRef

func (h txRefHeap) Len() int            { return len(h) }
func (h txRefHeap) Less(i, j int) bool  { return h[i].precedes(h[j]) }
func (h txRefHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *txRefHeap) Push(x interface{}) { *h = append(*h, x.(*poolTxRef)) }

func (h *txRefHeap) Pop() interface{} {
	old := *h
	n := len(old)
	ref := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ref
}

// removeHash deletes the first occurrence of hash from the slice, swapping in
// the last element.
func removeHash(hashes []common.Hash, hash common.Hash) []common.Hash {
	for i, h := range hashes {
		if h == hash {
			hashes[i] = hashes[len(hashes)-1]
			return hashes[:len(hashes)-1]
		}
	}
	return hashes
}
