package features

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"gonum.org/v1/gonum/mat"
)

// hashExtractor derives stable pseudo-features from image content. It lets the
// pipeline run end to end without a model.
type hashExtractor struct {
	regions int
	dims    int
}

func NewHashExtractor(regions, dims int) *hashExtractor {
	if regions <= 0 {
		regions = 49
	}
	if dims <= 0 {
		dims = 512
	}
	return &hashExtractor{regions: regions, dims: dims}
}

func (h *hashExtractor) Shape() (int, int) { return h.regions, h.dims }

func (h *hashExtractor) Extract(ctx context.Context, img Image) (Pair, error) {
	if err := ctx.Err(); err != nil {
		return Pair{}, err
	}
	hasher := sha256.New()
	var buf [4]byte
	for _, v := range img.Data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		hasher.Write(buf[:])
	}
	sum := hasher.Sum(nil)

	att := mat.NewDense(h.regions, h.dims, nil)
	for r := 0; r < h.regions; r++ {
		for j := 0; j < h.dims; j++ {
			b := sum[(r*31+j)%len(sum)]
			att.Set(r, j, (float64(b)-128.0)/128.0)
		}
	}
	return Pair{Attention: att, Global: meanRows(att)}, nil
}

// meanRows average-pools attention regions into the global feature.
func meanRows(m *mat.Dense) *mat.VecDense {
	rows, cols := m.Dims()
	out := mat.NewVecDense(cols, nil)
	for r := 0; r < rows; r++ {
		out.AddVec(out, m.RowView(r))
	}
	out.ScaleVec(1/float64(rows), out)
	return out
}
