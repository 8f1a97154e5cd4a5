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

// Package consensus defines the seal-verification interface consumed by the
// snapshot restoration code, together with a structural verifier for
// proof-of-work shaped headers and the fake engines used throughout tests.
package consensus

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

var (
	// ErrInvalidSeal is returned when a header's seal fields fail
	// verification.
	ErrInvalidSeal = errors.New("invalid block seal")

	// ErrExtraTooLong is returned when a header's extra-data section exceeds
	// the protocol maximum.
	ErrExtraTooLong = errors.New("extra-data too long")
)

// Engine verifies the consensus seal of block headers. Implementations are
// stateless with respect to the chain being rebuilt: the snapshot code hands
// them headers out of canonical order.
type Engine interface {
	// Name returns the engine's identifier, used in logs and the chain spec.
	Name() string

	// VerifyBlockSeal checks the seal fields of the given header. A nil
	// return means the seal is structurally and cryptographically acceptable
	// to this engine.
	VerifyBlockSeal(header *types.Header) error
}

// Basic performs structural seal verification for proof-of-work headers:
// the difficulty must be nonzero and the extra-data bounded. It does not
// recompute the proof-of-work itself, matching the light verification level
// applied during bulk restoration.
type Basic struct{}

// NewBasic creates a structural seal verifier.
func NewBasic() *Basic { return new(Basic) }

// Name implements Engine.
func (b *Basic) Name() string { return "basic" }

// VerifyBlockSeal implements Engine.
func (b *Basic) VerifyBlockSeal(header *types.Header) error {
	if uint64(len(header.Extra)) > params.MaximumExtraDataSize {
		return fmt.Errorf("%w: %d > %d", ErrExtraTooLong, len(header.Extra), params.MaximumExtraDataSize)
	}
	if header.Difficulty == nil || header.Difficulty.Sign() <= 0 {
		return fmt.Errorf("%w: zero difficulty", ErrInvalidSeal)
	}
	return nil
}

// Faker accepts every seal, optionally failing at one specific block number.
// It mirrors the fake engines the test suites of full clients rely on.
type Faker struct {
	failAt uint64
	fail   bool
}

// NewFaker creates an engine that accepts all seals.
func NewFaker() *Faker { return new(Faker) }

// NewFakeFailer creates an engine that accepts all seals except for the block
// at the given number.
func NewFakeFailer(number uint64) *Faker {
	return &Faker{failAt: number, fail: true}
}

// Name implements Engine.
func (f *Faker) Name() string { return "faker" }

// VerifyBlockSeal implements Engine.
func (f *Faker) VerifyBlockSeal(header *types.Header) error {
	if f.fail && header.Number != nil && header.Number.Uint64() == f.failAt {
		return fmt.Errorf("%w: block %d", ErrInvalidSeal, f.failAt)
	}
	return nil
}
