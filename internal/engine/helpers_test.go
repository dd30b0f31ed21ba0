package engine

// fixed is an entropy source that replays a scripted sequence of
// draws, cycling when exhausted.
type fixed struct {
	vals []float64
	i    int
}

func script(vals ...float64) *fixed {
	return &fixed{vals: vals}
}

func (f *fixed) Float() float64 {
	v := f.vals[f.i%len(f.vals)]
	f.i++
	return v
}
