package forecast

// seasonLength is the weekly seasonal period (one year of ISO weeks).
const seasonLength = 52

// minWeeklyPoints is the history length below which the weekly model
// degrades to a flat continuation of the recent mean.
const minWeeklyPoints = 8

// forecastWeekly projects a channel's weekly spend totals forward. Short
// histories extrapolate flat from the last few weeks; longer histories go
// through an additive Holt-Winters pass with period 52. Forecasts are
// clamped non-negative.
func forecastWeekly(history []float64, horizon int) []float64 {
	if horizon <= 0 {
		return nil
	}
	n := len(history)
	out := make([]float64, horizon)

	if n < minWeeklyPoints {
		k := n
		if k > 4 {
			k = 4
		}
		var mean float64
		if k > 0 {
			for _, v := range history[n-k:] {
				mean += v
			}
			mean /= float64(k)
		}
		for h := range out {
			out[h] = clampNonNegative(mean)
		}
		return out
	}

	const (
		alpha = 0.3  // level
		beta  = 0.05 // trend
		gamma = 0.3  // seasonal
	)

	level := meanOf(history[:minWeeklyPoints])
	trend := 0.0
	if n > minWeeklyPoints {
		trend = (meanOf(history[n-minWeeklyPoints:]) - level) / float64(n-minWeeklyPoints)
	}
	seasonal := make([]float64, seasonLength)
	if n >= 2*seasonLength {
		initSeasonal(history, seasonal)
	}

	for t := 0; t < n; t++ {
		s := seasonal[t%seasonLength]
		prevLevel := level
		level = alpha*(history[t]-s) + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
		seasonal[t%seasonLength] = gamma*(history[t]-level) + (1-gamma)*s
	}

	for h := 1; h <= horizon; h++ {
		v := level + float64(h)*trend + seasonal[(n+h-1)%seasonLength]
		out[h-1] = clampNonNegative(v)
	}
	return out
}

// initSeasonal seeds the seasonal indices as the mean deviation of each
// week-of-year from its season's mean, over the complete seasons available.
func initSeasonal(history []float64, seasonal []float64) {
	seasons := len(history) / seasonLength
	for i := 0; i < seasonLength; i++ {
		var dev float64
		for s := 0; s < seasons; s++ {
			start := s * seasonLength
			seasonMean := meanOf(history[start : start+seasonLength])
			dev += history[start+i] - seasonMean
		}
		seasonal[i] = dev / float64(seasons)
	}
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
