package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Static is a deterministic, in-process provider that hashes word tokens
// into a fixed-length bag-of-words vector. Texts sharing tokens get
// proportionally similar vectors, which is enough for offline operation
// and for exercising the retrieval path in tests without a live backend.
type Static struct {
	dimension int
}

// NewStatic creates a static provider with the given dimension.
func NewStatic(dimension int) *Static {
	if dimension <= 0 {
		dimension = 256
	}
	return &Static{dimension: dimension}
}

func (s *Static) Name() string   { return "static" }
func (s *Static) Dimension() int { return s.dimension }

func (s *Static) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vectorize(text)
	}
	return out, nil
}

func (s *Static) vectorize(text string) []float32 {
	vec := make([]float32, s.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(s.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
