package solana

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionError_JSON(t *testing.T) {
	tests := []struct {
		name string
		err  *TransactionError
		wire string
	}{
		{"transaction level", NewTransactionError(TxErrBlockhashNotFound), `"BlockhashNotFound"`},
		{"instruction kind", NewInstructionError(1, IxErrInvalidArgument), `{"InstructionError":[1,"InvalidArgument"]}`},
		{"custom code", NewCustomError(0, 6003), `{"InstructionError":[0,{"Custom":6003}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.err)
			require.NoError(t, err)
			assert.JSONEq(t, tt.wire, string(raw))

			var decoded TransactionError
			require.NoError(t, json.Unmarshal([]byte(tt.wire), &decoded))
			assert.Equal(t, *tt.err, decoded)
		})
	}
}

func TestTransactionError_CustomCode(t *testing.T) {
	code, ok := NewCustomError(2, 6001).CustomCode()
	assert.True(t, ok)
	assert.Equal(t, uint32(6001), code)
	assert.Equal(t, "Error processing Instruction 2: custom program error: 0x1771", NewCustomError(2, 6001).Error())

	_, ok = NewTransactionError(TxErrAlreadyProcessed).CustomCode()
	assert.False(t, ok)

	var nilErr *TransactionError
	_, ok = nilErr.CustomCode()
	assert.False(t, ok)
}
