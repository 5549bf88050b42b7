package postgres

import (
	"encoding/json"
	"math"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// signalRecord is the persisted shape of the indicator snapshot attached to
// a trade. NaN has no JSON encoding, so undefined indicators are stored as
// absent fields and restored as NaN on read. The rolling history tails are
// evaluation inputs, not audit state, and are not persisted.
type signalRecord struct {
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	BarCount    int       `json:"bar_count"`
	Timestamp   time.Time `json:"timestamp"`
	Close       *float64  `json:"close,omitempty"`
	RSI14       *float64  `json:"rsi14,omitempty"`
	RSI7        *float64  `json:"rsi7,omitempty"`
	MA20        *float64  `json:"ma20,omitempty"`
	MA50        *float64  `json:"ma50,omitempty"`
	MA200       *float64  `json:"ma200,omitempty"`
	BBUpper     *float64  `json:"bb_upper,omitempty"`
	BBMiddle    *float64  `json:"bb_middle,omitempty"`
	BBLower     *float64  `json:"bb_lower,omitempty"`
	VolumeRatio *float64  `json:"volume_ratio,omitempty"`
}

func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func restore(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func marshalSignal(set domain.IndicatorSet) ([]byte, error) {
	if set.Symbol == "" && set.BarCount == 0 {
		return nil, nil
	}
	return json.Marshal(signalRecord{
		Symbol:      set.Symbol,
		Interval:    string(set.Interval),
		BarCount:    set.BarCount,
		Timestamp:   set.Timestamp,
		Close:       optional(set.Close),
		RSI14:       optional(set.RSI14),
		RSI7:        optional(set.RSI7),
		MA20:        optional(set.MA20),
		MA50:        optional(set.MA50),
		MA200:       optional(set.MA200),
		BBUpper:     optional(set.BBUpper),
		BBMiddle:    optional(set.BBMiddle),
		BBLower:     optional(set.BBLower),
		VolumeRatio: optional(set.VolumeRatio),
	})
}

func unmarshalSignal(data []byte) (domain.IndicatorSet, error) {
	if len(data) == 0 {
		return domain.IndicatorSet{}, nil
	}
	var rec signalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.IndicatorSet{}, err
	}
	return domain.IndicatorSet{
		Symbol:      rec.Symbol,
		Interval:    domain.Interval(rec.Interval),
		BarCount:    rec.BarCount,
		Valid:       true,
		Timestamp:   rec.Timestamp,
		Close:       restore(rec.Close),
		RSI14:       restore(rec.RSI14),
		RSI7:        restore(rec.RSI7),
		MA20:        restore(rec.MA20),
		MA50:        restore(rec.MA50),
		MA200:       restore(rec.MA200),
		BBUpper:     restore(rec.BBUpper),
		BBMiddle:    restore(rec.BBMiddle),
		BBLower:     restore(rec.BBLower),
		VolumeRatio: restore(rec.VolumeRatio),
	}, nil
}
