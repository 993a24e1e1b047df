package cosig

// Bitmap records which roster members contributed to an aggregate
// signature. Position i corresponds to roster position i; its length
// must equal the roster size for the cosignature to be well formed.
type Bitmap []bool

// SetCount returns the number of true entries.
func (b Bitmap) SetCount() int {
	count := 0
	for _, set := range b {
		if set {
			count++
		}
	}

	return count
}

// Indices returns the positions of all true entries, in roster order.
func (b Bitmap) Indices() []int {
	var indices []int
	for i, set := range b {
		if set {
			indices = append(indices, i)
		}
	}

	return indices
}

// NewBitmap builds a bitmap of the given size with the listed positions set.
// Out-of-range positions are ignored.
func NewBitmap(size int, indices []int) Bitmap {
	b := make(Bitmap, size)

	for _, idx := range indices {
		if idx >= 0 && idx < size {
			b[idx] = true
		}
	}

	return b
}

// PackBitmap packs a bitmap into bytes, LSB-first within each byte.
func PackBitmap(b Bitmap) []byte {
	packed := make([]byte, (len(b)+7)/8)

	for i, set := range b {
		if set {
			packed[i/8] |= 1 << (i % 8)
		}
	}

	return packed
}

// UnpackBitmap unpacks size bits from packed bytes.
// Returns false if packed is too short for size bits.
func UnpackBitmap(packed []byte, size int) (Bitmap, bool) {
	if len(packed) < (size+7)/8 {
		return nil, false
	}

	b := make(Bitmap, size)

	for i := 0; i < size; i++ {
		b[i] = packed[i/8]&(1<<(i%8)) != 0
	}

	return b, true
}
