package conviction

import (
	"math"
	"time"

	"github.com/insiderdesk/signal-engine/internal/filing"
	"github.com/insiderdesk/signal-engine/internal/model"
)

// ClusterThreshold is the fixed distinct-buyer count that flags a cluster
// buy. The flag always uses this threshold, independent of whatever
// min_buyers filter a caller applies.
const ClusterThreshold = 2

// ScoreScale is the number of decimal places scores are rounded to.
const ScoreScale = 4

// IsCluster reports whether distinct in-window buyers qualify as a cluster.
func IsCluster(distinctBuyers int) bool {
	return distinctBuyers >= ClusterThreshold
}

// Calibration holds the tunable weighting constants of the conviction
// score. The defaults are calibrated against the badge cutoffs the UI
// renders at 5/20/50; they are a starting point, not gospel.
type Calibration struct {
	// OfficerMultiplier weights purchases by officer/executive-class
	// filers (CEO, CFO, President, Officer, Director titles).
	OfficerMultiplier float64

	// ClusterBonus is added per distinct buyer beyond the first.
	ClusterBonus float64

	// DecayFloor is the minimum recency multiplier, so a purchase from
	// the start of the window still counts partially.
	DecayFloor float64
}

// DefaultCalibration returns the standard weighting constants.
func DefaultCalibration() Calibration {
	return Calibration{
		OfficerMultiplier: 1.5,
		ClusterBonus:      5,
		DecayFloor:        0.2,
	}
}

// Score reduces one aggregate to its conviction score:
//
//	score = Σ log10(max(value,1)) × role × decay  +  (buyers-1) × bonus
//
// over the aggregate's in-window purchases. log10 keeps dollar size
// sub-linear: a 10x larger purchase adds a constant +1, so one whale buy
// cannot drown broad multi-insider interest. decay is
// max(floor, 1 - age/days); with days == AllTime every event decays to 1.
//
// The result is non-negative for any valid input.
func (c Calibration) Score(agg model.TickerAggregate, days int, now time.Time) float64 {
	var score float64
	for _, e := range agg.Purchases {
		score += c.eventWeight(e, days, now)
	}
	if agg.DistinctBuyers > 1 {
		score += float64(agg.DistinctBuyers-1) * c.ClusterBonus
	}
	return roundScore(score)
}

func (c Calibration) eventWeight(e model.TradeEvent, days int, now time.Time) float64 {
	v := 1.0
	if e.Value.Valid {
		if f := e.Value.Decimal.InexactFloat64(); f > 1 {
			v = f
		}
	}
	w := math.Log10(v)

	if filing.IsOfficer(e.InsiderTitle) {
		w *= c.OfficerMultiplier
	}

	return w * c.recencyDecay(e.TradeDate, days, now)
}

// recencyDecay linearly discounts older purchases down to DecayFloor.
// days is never zero here on the division path: AllTime is its own branch.
func (c Calibration) recencyDecay(tradeDate time.Time, days int, now time.Time) float64 {
	if days == AllTime {
		return 1
	}
	age := now.Sub(tradeDate).Hours() / 24
	if age < 0 {
		age = 0
	}
	decay := 1 - age/float64(days)
	if decay < c.DecayFloor {
		return c.DecayFloor
	}
	return decay
}

func roundScore(s float64) float64 {
	pow := math.Pow10(ScoreScale)
	return math.Round(s*pow) / pow
}
