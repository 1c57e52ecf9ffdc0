package limits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePacket(t *testing.T) {
	assert.ErrorIs(t, ValidatePacket(nil), ErrPacketEmpty)
	assert.NoError(t, ValidatePacket(make([]byte, MaxPacketSize)))

	err := ValidatePacket(make([]byte, MaxPacketSize+1))
	assert.ErrorIs(t, err, ErrPacketTooLarge)
	assert.Contains(t, err.Error(), "32001")
}

func TestValidateMediaFrame(t *testing.T) {
	assert.NoError(t, ValidateMediaFrame(make([]byte, 100)))
	assert.ErrorIs(t, ValidateMediaFrame(make([]byte, MaxMediaFrame+1)), ErrPacketTooLarge)
	assert.Less(t, MaxMediaFrame, MaxPacketSize)
}

func TestValidateSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		limit   int
		wantErr error
	}{
		{"empty", 0, 10, ErrPacketEmpty},
		{"at limit", 10, 10, nil},
		{"over limit", 11, 10, ErrPacketTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSize(make([]byte, tt.size), tt.limit)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
