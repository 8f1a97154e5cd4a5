// Copyright 2016 The parity Authors
// This file is part of the parity library.
//
// The parity library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The parity library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the parity library. If not, see <http://www.gnu.org/licenses/>.

package snapshot

import "github.com/ethereum/go-ethereum/metrics"

var (
	// stateChunkMeter counts accepted state chunks across restorations.
	stateChunkMeter = metrics.NewRegisteredMeter("snapshot/restore/state", nil)

	// blockChunkMeter counts accepted block chunks across restorations.
	blockChunkMeter = metrics.NewRegisteredMeter("snapshot/restore/block", nil)

	// finalizeTimer measures the duration of restoration finalization,
	// database swap included.
	finalizeTimer = metrics.NewRegisteredTimer("snapshot/restore/finalize", nil)
)
