// Package indicator computes technical indicators over ordered candle
// slices. All functions are pure; values that cannot be computed from the
// given history come back as NaN.
package indicator

import (
	"math"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// RSISeries computes the Wilder-smoothed RSI for each close, aligned with the
// input. Entries before the first full period are NaN.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

// RSI returns the latest Wilder-smoothed RSI value.
func RSI(closes []float64, period int) float64 {
	series := RSISeries(closes, period)
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bollinger returns the upper, middle, and lower bands over the last period
// closes using a population standard deviation and k band widths.
func Bollinger(closes []float64, period int, k float64) (upper, middle, lower float64) {
	middle = SMA(closes, period)
	if math.IsNaN(middle) {
		return math.NaN(), math.NaN(), math.NaN()
	}
	var variance float64
	for _, c := range closes[len(closes)-period:] {
		d := c - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return middle + k*sd, middle, middle - k*sd
}

// VolumeRatio returns the last bar's volume over the mean volume of the
// preceding window bars. The current bar is excluded from the baseline.
func VolumeRatio(volumes []float64, window int) float64 {
	if window <= 0 || len(volumes) < window+1 {
		return math.NaN()
	}
	baseline := volumes[len(volumes)-1-window : len(volumes)-1]
	var sum float64
	for _, v := range baseline {
		sum += v
	}
	mean := sum / float64(window)
	if mean == 0 {
		return math.NaN()
	}
	return volumes[len(volumes)-1] / mean
}

// ResampleHourly aggregates candles (oldest→newest) into hourly bars keyed by
// the truncated hour. A partial trailing hour is included as its own bar.
func ResampleHourly(candles []domain.Candle) []domain.Candle {
	if len(candles) == 0 {
		return nil
	}
	var out []domain.Candle
	for _, c := range candles {
		hour := c.Timestamp.Truncate(time.Hour)
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(hour) {
			bar := &out[n-1]
			if c.High > bar.High {
				bar.High = c.High
			}
			if c.Low < bar.Low {
				bar.Low = c.Low
			}
			bar.Close = c.Close
			bar.Volume += c.Volume
			continue
		}
		out = append(out, domain.Candle{
			Symbol:    c.Symbol,
			Interval:  domain.Interval1h,
			Timestamp: hour,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	return out
}
