package backtest

// rollingMean keeps the trailing size values in a ring and averages them in
// chronological order, so the mean equals a direct sum over the slice.
type rollingMean struct {
	values []float64
	size   int
	index  int
	filled bool
}

func newRollingMean(size int) *rollingMean {
	return &rollingMean{
		values: make([]float64, size),
		size:   size,
	}
}

func (r *rollingMean) Add(value float64) {
	r.values[r.index] = value
	r.index = (r.index + 1) % r.size
	if r.index == 0 {
		r.filled = true
	}
}

// Mean is undefined until size values have been added.
func (r *rollingMean) Mean() Optional {
	if !r.filled {
		return None()
	}
	sum := 0.0
	for _, v := range r.values[r.index:] {
		sum += v
	}
	for _, v := range r.values[:r.index] {
		sum += v
	}
	return Some(sum / float64(r.size))
}
