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

import "errors"

var (
	// ErrAlreadyImported is returned if a transaction with the same hash is
	// already tracked by the pool, in either the ready or the pending set. The
	// pool state is unchanged when this is returned.
	ErrAlreadyImported = errors.New("transaction already imported")

	// ErrCyclicTransaction is returned if admitting a transaction would,
	// through cascading promotion, cause its own eviction from the ready set.
	// Everything promoted by the failed admission is rolled back before the
	// error is returned.
	ErrCyclicTransaction = errors.New("cyclic transaction")

	// errNotReady is an internal guard: only transactions without missing
	// markers may enter the ready set.
	errNotReady = errors.New("transaction has missing markers")
)
