package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromSmallestUnit(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, "1.5", FromSmallestUnit(wei, 18).String())
	assert.Equal(t, "0", FromSmallestUnit(nil, 18).String())
}

func TestChunkBySize(t *testing.T) {
	chunks := ChunkBySize([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
	assert.Empty(t, ChunkBySize([]int{}, 2))
}
