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

func TestGenerate(t *testing.T) {
	t.Parallel()
	id := Generate()

	assert.Len(t, id, Length)
	require.NoError(t, Validate(id))
	assert.LessOrEqual(t, id[0], byte('7'))
}

func TestGenerateUnique(t *testing.T) {
	t.Parallel()
	ids := make(map[string]bool)
	for range 100 {
		id := Generate()
		require.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true
	}
}

func TestGenerateTimeSorted(t *testing.T) {
	t.Parallel()
	var ids []string
	for range 10 {
		ids = append(ids, Generate())
		time.Sleep(2 * time.Millisecond)
	}
	for i := 1; i < len(ids); i++ {
		assert.Negative(t, strings.Compare(ids[i-1], ids[i]), "ids not sorted: %s >= %s", ids[i-1], ids[i])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	for range 50 {
		u := uuid.Must(uuid.NewV7())
		got, err := Decode(Encode(u))
		require.NoError(t, err)
		assert.Equal(t, u, got)
	}

	assert.Equal(t, strings.Repeat("0", Length), Encode(uuid.Nil))
	assert.Equal(t, "7"+strings.Repeat("z", Length-1), Encode(uuid.Max))
}

func TestGeneratorWithReader(t *testing.T) {
	t.Parallel()
	g := NewGenerator(bytes.NewReader(bytes.Repeat([]byte{0xab}, 64)))
	require.NoError(t, Validate(g.Generate()))
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		id   string
	}{
		{"too short", "01h455vb4pex5vsknk084sn02"},
		{"too long", "01h455vb4pex5vsknk084sn02qq"},
		{"first char too large", "81h455vb4pex5vsknk084sn02q"},
		{"invalid character", "01h455vb4pex5vsknk084sn0uq"},
		{"not v7", strings.Repeat("0", Length)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate(tt.id))
		})
	}
}
