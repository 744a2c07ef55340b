package similarity

// Jaccard returns |a ∩ b| / |a ∪ b| for two ascending, duplicate-free sets.
// It is 0 when either set is empty.
func Jaccard(a, b []uint32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := intersect(a, b)
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// upperBound is the largest Jaccard value two sets of these sizes can have.
func upperBound(na, nb int) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	if na > nb {
		na, nb = nb, na
	}
	return float64(na) / float64(nb)
}

func intersect(a, b []uint32) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
