package emath

// A MaskGrid flags each pixel of a FloatGrid as good (true) or rejected.
type MaskGrid struct {
	stride int
	values []bool
}

// NewMaskGrid returns a grid with every pixel good.
func NewMaskGrid(w, h int) MaskGrid {
	m := MaskGrid{stride: w, values: make([]bool, w*h)}
	for i := range m.values {
		m.values[i] = true
	}
	return m
}

func (m *MaskGrid)Set(x, y int, v bool) { m.values[m.stride*y + x] = v }
func (m *MaskGrid)Get(x, y int) bool    { return m.values[m.stride*y + x] }
func (m *MaskGrid)Dx() int              { return m.stride }
func (m *MaskGrid)Dy() int {
	if m.stride == 0 {
		return 0
	}
	return len(m.values) / m.stride
}

func (m *MaskGrid)Copy() *MaskGrid {
	m2 := MaskGrid{stride: m.stride, values: make([]bool, len(m.values))}
	copy(m2.values, m.values)
	return &m2
}

func (m *MaskGrid)Row(y int) []bool {
	return append([]bool(nil), m.values[y*m.stride:(y+1)*m.stride]...)
}

func (m *MaskGrid)SetRow(y int, v []bool) {
	copy(m.values[y*m.stride:(y+1)*m.stride], v)
}

func (m *MaskGrid)Col(x int) []bool {
	col := make([]bool, m.Dy())
	for y := range col {
		col[y] = m.Get(x, y)
	}
	return col
}

func (m *MaskGrid)SetCol(x int, v []bool) {
	for y := range v {
		m.Set(x, y, v[y])
	}
}

// CountBad returns the number of rejected pixels.
func (m *MaskGrid)CountBad() int {
	n := 0
	for _, v := range m.values {
		if !v {
			n++
		}
	}
	return n
}

// AsFloatGrid maps good to 1 and bad to 0, for saving.
func (m *MaskGrid)AsFloatGrid() FloatGrid {
	g := NewFloatGrid(m.Dx(), m.Dy())
	for i, v := range m.values {
		if v {
			g.values[i] = 1
		}
	}
	return g
}

// MaskFromFloatGrid treats any nonzero value as good.
func MaskFromFloatGrid(g FloatGrid) MaskGrid {
	m := MaskGrid{stride: g.stride, values: make([]bool, len(g.values))}
	for i, v := range g.values {
		m.values[i] = v != 0
	}
	return m
}
