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

package consensus

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

func TestBasicSealVerification(t *testing.T) {
	engine := NewBasic()

	tests := []struct {
		name    string
		header  *types.Header
		wantErr error
	}{
		{
			name:   "valid",
			header: &types.Header{Number: big.NewInt(1), Difficulty: big.NewInt(131072)},
		},
		{
			name:    "zero difficulty",
			header:  &types.Header{Number: big.NewInt(1), Difficulty: new(big.Int)},
			wantErr: ErrInvalidSeal,
		},
		{
			name:    "nil difficulty",
			header:  &types.Header{Number: big.NewInt(1)},
			wantErr: ErrInvalidSeal,
		},
		{
			name: "oversized extra",
			header: &types.Header{
				Number:     big.NewInt(1),
				Difficulty: big.NewInt(1),
				Extra:      make([]byte, params.MaximumExtraDataSize+1),
			},
			wantErr: ErrExtraTooLong,
		},
	}
	for _, tt := range tests {
		err := engine.VerifyBlockSeal(tt.header)
		if tt.wantErr == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestFakeFailer(t *testing.T) {
	engine := NewFakeFailer(5)

	for number := uint64(1); number <= 10; number++ {
		header := &types.Header{Number: new(big.Int).SetUint64(number), Difficulty: big.NewInt(1)}
		err := engine.VerifyBlockSeal(header)
		if number == 5 {
			if !errors.Is(err, ErrInvalidSeal) {
				t.Fatalf("block 5: expected seal failure, got %v", err)
			}
		} else if err != nil {
			t.Fatalf("block %d: unexpected error %v", number, err)
		}
	}
}
