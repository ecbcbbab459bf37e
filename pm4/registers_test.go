// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pm4

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterFileWriteRead(t *testing.T) {
	rf := &RegisterFile{}
	require.NoError(t, rf.Write(BankUConfig, regPrimType, 4))
	require.Equal(t, uint32(4), rf.Read(BankUConfig, regPrimType))
}

func TestRegisterFileWriteRangeOutOfBounds(t *testing.T) {
	rf := &RegisterFile{}
	err := rf.WriteRange(BankCounters, BankCounters.size()-1, []uint32{1, 2})
	require.ErrorAs(t, err, &ErrRegisterOutOfBounds{})
}

func TestRegisterFileReadPastExtentIsZero(t *testing.T) {
	rf := &RegisterFile{}
	require.Equal(t, uint32(0), rf.Read(BankConfig, BankConfig.size()+1))
}

func TestBankForOp(t *testing.T) {
	bank, ok := bankForOp(OpSetShReg)
	require.True(t, ok)
	require.Equal(t, BankShaderConfig, bank)

	_, ok = bankForOp(OpDrawIndexAuto)
	require.False(t, ok)
}
