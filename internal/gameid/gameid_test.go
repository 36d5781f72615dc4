package gameid

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableID(t *testing.T) {
	id := NewGenerator(nil).TableID()

	assert.Len(t, id, Length)
	require.NoError(t, Validate(id))
	assert.LessOrEqual(t, id[0], byte('7'))
}

func TestTableIDUnique(t *testing.T) {
	gen := NewGenerator(nil)
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.TableID()
		require.False(t, ids[id], "duplicate ID generated: %s", id)
		ids[id] = true
	}
}

func TestTableIDTimeSorted(t *testing.T) {
	gen := NewGenerator(nil)
	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, gen.TableID())
		time.Sleep(time.Millisecond)
	}

	for i := 1; i < len(ids); i++ {
		assert.Negative(t, strings.Compare(ids[i-1], ids[i]), "IDs not sorted: %s >= %s", ids[i-1], ids[i])
	}
}

func TestPlayerID(t *testing.T) {
	gen := NewGenerator(nil)
	id := gen.PlayerID()
	assert.Len(t, id, 8)
	assert.True(t, strings.HasPrefix(id, "p"))
	assert.NotEqual(t, id, gen.PlayerID())
}

func TestEncodeKnownValues(t *testing.T) {
	assert.Equal(t, strings.Repeat("0", Length), Encode(uuid.Nil))
	var max uuid.UUID
	for i := range max {
		max[i] = 0xff
	}
	assert.Equal(t, "7"+strings.Repeat("z", Length-1), Encode(max))

	var one uuid.UUID
	one[15] = 0x01
	assert.Equal(t, strings.Repeat("0", Length-1)+"1", Encode(one))
	one[15] = 0x20
	assert.Equal(t, strings.Repeat("0", Length-2)+"10", Encode(one))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "valid ID", id: "01h5n0et5q6mt3v7ms1234abcd"},
		{name: "too short", id: "01h5n0et5q6mt3v7ms123", wantErr: true},
		{name: "too long", id: "01h5n0et5q6mt3v7ms1234abcdef", wantErr: true},
		{name: "first char too high", id: "81h5n0et5q6mt3v7ms1234abcd", wantErr: true},
		{name: "invalid character", id: "01h5n0et5q6mt3v7ms1234abci", wantErr: true},
		{name: "uppercase not allowed", id: "01H5N0ET5Q6MT3V7MS1234ABCD", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAlphabet(t *testing.T) {
	require.Len(t, alphabet, 32)

	seen := make(map[rune]bool)
	for _, char := range alphabet {
		assert.False(t, seen[char], "duplicate character in alphabet: %c", char)
		seen[char] = true
	}

	for _, char := range "ilou" {
		assert.NotContains(t, alphabet, string(char))
	}
}

func TestGeneratorWithReader(t *testing.T) {
	gen := NewGenerator(bytes.NewReader(bytes.Repeat([]byte{0xab}, 64)))

	id := gen.TableID()
	require.NoError(t, Validate(id))

	player := gen.PlayerID()
	assert.Len(t, player, 8)
}
