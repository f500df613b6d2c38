package utils

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ChunkBySize splits slice into chunks with maximum size 'chunkSize'
func ChunkBySize[T any](slice []T, chunkSize int) [][]T {
	if len(slice) == 0 {
		return [][]T{}
	}
	if chunkSize <= 0 {
		return [][]T{slice}
	}

	chunks := make([][]T, 0, (len(slice)+chunkSize-1)/chunkSize)
	for i := 0; i < len(slice); i += chunkSize {
		end := min(i+chunkSize, len(slice))
		chunks = append(chunks, slice[i:end])
	}
	return chunks
}

// FromSmallestUnit renders an integer smallest-unit amount as a coin decimal.
func FromSmallestUnit(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}
