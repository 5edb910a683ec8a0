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
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	testRecipient = common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	testPayloadID atomic.Uint64
)

// newTestTransaction builds a validated transaction with a unique hash.
func newTestTransaction(sender common.Address, price uint64) *PendingTransaction {
	inner := types.NewTx(&types.LegacyTx{
		Nonce:    testPayloadID.Add(1),
		GasPrice: new(big.Int).SetUint64(price),
		Gas:      21000,
		To:       &testRecipient,
		Value:    common.Big1,
		Data:     sender.Bytes(),
	})
	return NewPendingTransaction(inner, sender)
}

// graphTx builds a pool transaction with explicit dependency markers and no
// priority assigned; the pool fills that in on admission.
func graphTx(sender common.Address, price uint64, requires, provides []Marker) *PoolTransaction {
	return NewPoolTransaction(newTestTransaction(sender, price), requires, provides)
}

// indexTx is graphTx with the priority pre-assigned, for driving the index
// structures directly.
func indexTx(price uint64, requires, provides []Marker) *PoolTransaction {
	tx := graphTx(common.HexToAddress("0xaa"), price, requires, provides)
	tx.Priority = uint256.NewInt(price)
	return tx
}

// marker builds an arbitrary opaque marker for dependency-graph tests.
func marker(id byte) Marker {
	var m Marker
	m[0] = id
	return m
}

func TestMarkerForNonce(t *testing.T) {
	addr := common.HexToAddress("0x01")
	other := common.HexToAddress("0x02")

	require.Equal(t, MarkerForNonce(1, addr), MarkerForNonce(1, addr))
	require.NotEqual(t, MarkerForNonce(2, addr), MarkerForNonce(1, addr))
	require.NotEqual(t, MarkerForNonce(1, addr), MarkerForNonce(1, other))
}

func TestPendingTransactionsUnlock(t *testing.T) {
	pending := newPendingTransactions()

	// one transaction waiting on a single marker, one waiting on two
	single := newPendingPoolTransaction(indexTx(1, []Marker{marker(1)}, []Marker{marker(10)}), nil)
	double := newPendingPoolTransaction(indexTx(1, []Marker{marker(1), marker(2)}, []Marker{marker(11)}), nil)
	pending.add(single)
	pending.add(double)
	require.Equal(t, 2, pending.Len())
	require.True(t, pending.contains(single.transaction.Hash()))

	unlocked := pending.markAndUnlock([]Marker{marker(1)})
	require.Len(t, unlocked, 1)
	require.Equal(t, single.transaction.Hash(), unlocked[0].transaction.Hash())
	require.Equal(t, 1, pending.Len())

	unlocked = pending.markAndUnlock([]Marker{marker(2)})
	require.Len(t, unlocked, 1)
	require.Equal(t, double.transaction.Hash(), unlocked[0].transaction.Hash())
	require.Equal(t, 0, pending.Len())

	// satisfying an unknown marker is a no-op
	require.Empty(t, pending.markAndUnlock([]Marker{marker(3)}))
}

func TestPendingTransactionsRemove(t *testing.T) {
	pending := newPendingTransactions()

	tx := newPendingPoolTransaction(indexTx(1, []Marker{marker(1)}, []Marker{marker(10)}), nil)
	pending.add(tx)

	removed := pending.remove([]common.Hash{tx.transaction.Hash()})
	require.Len(t, removed, 1)
	require.Equal(t, 0, pending.Len())
	require.Empty(t, pending.requiredMarkers)

	// removing an unknown hash returns nothing
	require.Empty(t, pending.remove([]common.Hash{{0x01}}))
}

func TestReadyTransactionsReplace(t *testing.T) {
	ready := newReadyTransactions()

	provider := indexTx(1, nil, []Marker{marker(1)})
	dependent := indexTx(1, []Marker{marker(1)}, []Marker{marker(2)})
	for _, tx := range []*PoolTransaction{provider, dependent} {
		replaced, err := ready.add(newPendingPoolTransaction(tx, ready.provided()))
		require.NoError(t, err)
		require.Empty(t, replaced)
	}
	require.Equal(t, 2, ready.Len())

	// a new provider of the same marker displaces the old one, but the
	// dependent survives and is rewired onto the replacement
	replacement := indexTx(2, nil, []Marker{marker(1)})
	replaced, err := ready.add(newPendingPoolTransaction(replacement, ready.provided()))
	require.NoError(t, err)
	require.Len(t, replaced, 1)
	require.Equal(t, provider.Hash(), replaced[0].Hash())

	require.Equal(t, 2, ready.Len())
	require.True(t, ready.contains(dependent.Hash()))
	require.Equal(t, []common.Hash{dependent.Hash()}, ready.ready[replacement.Hash()].unlocks)
}

func TestReadyTransactionsCascadingRemove(t *testing.T) {
	ready := newReadyTransactions()

	tx1 := indexTx(1, nil, []Marker{marker(1)})
	tx2 := indexTx(1, []Marker{marker(1)}, []Marker{marker(2)})
	tx3 := indexTx(1, []Marker{marker(2)}, []Marker{marker(3)})
	for _, tx := range []*PoolTransaction{tx1, tx2, tx3} {
		_, err := ready.add(newPendingPoolTransaction(tx, ready.provided()))
		require.NoError(t, err)
	}

	removed := ready.clearTransactions([]common.Hash{tx1.Hash()})
	require.Len(t, removed, 3)
	require.Equal(t, 0, ready.Len())
	require.Empty(t, ready.providedMarkers)
}

func TestReadyTransactionsPrune(t *testing.T) {
	ready := newReadyTransactions()

	tx1 := indexTx(1, nil, []Marker{marker(1)})
	tx2 := indexTx(1, []Marker{marker(1)}, []Marker{marker(2)})
	for _, tx := range []*PoolTransaction{tx1, tx2} {
		_, err := ready.add(newPendingPoolTransaction(tx, ready.provided()))
		require.NoError(t, err)
	}

	pruned := ready.pruneMarker(marker(1))
	require.Len(t, pruned, 1)
	require.Equal(t, tx1.Hash(), pruned[0].Hash())

	// the dependent lost its last in-pool dependency and seeds iteration now
	require.True(t, ready.contains(tx2.Hash()))
	require.Contains(t, ready.independent, tx2.Hash())

	pruned = ready.pruneMarker(marker(2))
	require.Len(t, pruned, 1)
	require.Equal(t, 0, ready.Len())

	// pruning an already pruned marker is a no-op
	require.Empty(t, ready.pruneMarker(marker(1)))
	require.Empty(t, ready.pruneMarker(marker(2)))
}

func TestIteratorPriorityOrder(t *testing.T) {
	ready := newReadyTransactions()

	cheap := indexTx(1, nil, []Marker{marker(1)})
	pricey := indexTx(5, nil, []Marker{marker(2)})
	middle := indexTx(3, nil, []Marker{marker(3)})
	for _, tx := range []*PoolTransaction{cheap, pricey, middle} {
		_, err := ready.add(newPendingPoolTransaction(tx, ready.provided()))
		require.NoError(t, err)
	}

	var order []common.Hash
	for it := ready.iterator(); ; {
		tx := it.Next()
		if tx == nil {
			break
		}
		order = append(order, tx.Hash())
	}
	require.Equal(t, []common.Hash{pricey.Hash(), middle.Hash(), cheap.Hash()}, order)
}

func TestIteratorArrivalTieBreak(t *testing.T) {
	ready := newReadyTransactions()

	var want []common.Hash
	for i := 0; i < 4; i++ {
		tx := indexTx(7, nil, []Marker{marker(byte(i + 1))})
		_, err := ready.add(newPendingPoolTransaction(tx, ready.provided()))
		require.NoError(t, err)
		want = append(want, tx.Hash())
	}

	var order []common.Hash
	for it := ready.iterator(); ; {
		tx := it.Next()
		if tx == nil {
			break
		}
		order = append(order, tx.Hash())
	}
	require.Equal(t, want, order)
}

func TestIteratorDependencyOrder(t *testing.T) {
	ready := newReadyTransactions()

	// the dependent pays more, but its provider must still come first
	provider := indexTx(1, nil, []Marker{marker(1)})
	dependent := indexTx(100, []Marker{marker(1)}, []Marker{marker(2)})
	loner := indexTx(50, nil, []Marker{marker(3)})
	for _, tx := range []*PoolTransaction{provider, dependent, loner} {
		_, err := ready.add(newPendingPoolTransaction(tx, ready.provided()))
		require.NoError(t, err)
	}

	var order []common.Hash
	for it := ready.iterator(); ; {
		tx := it.Next()
		if tx == nil {
			break
		}
		order = append(order, tx.Hash())
	}
	require.Equal(t, []common.Hash{loner.Hash(), provider.Hash(), dependent.Hash()}, order)
}

func TestReadyTransactionsRejectsUnready(t *testing.T) {
	ready := newReadyTransactions()

	tx := newPendingPoolTransaction(indexTx(1, []Marker{marker(1)}, []Marker{marker(2)}), nil)
	_, err := ready.add(tx)
	require.ErrorIs(t, err, errNotReady)
	require.Equal(t, 0, ready.Len())
}
