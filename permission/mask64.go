package permission

// RootBit is the bit reserved for super-admin masks.
const RootBit = 63

// Mask64 is a set of up to 64 permission bits.
type Mask64 uint64

// Has reports whether bit is set. With rootReserved, a mask carrying
// RootBit has every bit.
func (m Mask64) Has(bit int, rootReserved bool) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	if rootReserved && m&(1<<RootBit) != 0 {
		return true
	}
	return m&(1<<bit) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << bit
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= 1 << bit
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
