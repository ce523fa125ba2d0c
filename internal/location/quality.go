package location

import (
	"fmt"
	"time"
)

// QualityBand labels a score range; the coordinator gates milestone
// anchoring on the band, not the raw score.
type QualityBand string

const (
	BandExcellent    QualityBand = "excellent"
	BandGood         QualityBand = "good"
	BandFair         QualityBand = "fair"
	BandPoor         QualityBand = "poor"
	BandUnacceptable QualityBand = "unacceptable"
)

const (
	manualSourceScore = 95
	agePenaltyFree    = 10 * time.Minute
	agePenaltyMax     = 20.0
	regionPenalty     = 30.0
)

// Quality bundles the score with its band label and a short description.
type Quality struct {
	Score       float64
	Band        QualityBand
	Description string
}

// CanAnchorMilestone reports whether a sample of this quality may anchor an
// onsite-visit milestone. Anything above unacceptable proceeds, at worst
// with a warning.
func (q Quality) CanAnchorMilestone() bool {
	return q.Band != BandUnacceptable
}

// QualityScore grades a sample. Manual entries score a flat 95; GPS entries
// score by accuracy band, reduced for staleness past 10 minutes (linear in
// excess minutes, capped at 20 points) and by 30 points when outside the
// expected region.
func (v *Validator) QualityScore(sample Sample) Quality {
	if sample.Source == SourceManual {
		return Quality{
			Score:       manualSourceScore,
			Band:        BandExcellent,
			Description: "manually entered location",
		}
	}

	score := accuracyBaseScore(sample.AccuracyMeters)

	if !sample.Timestamp.IsZero() {
		age := v.now().Sub(sample.Timestamp)
		if age > agePenaltyFree {
			penalty := age.Minutes() - agePenaltyFree.Minutes()
			if penalty > agePenaltyMax {
				penalty = agePenaltyMax
			}
			score -= penalty
		}
	}
	if !v.region.Contains(sample.Latitude, sample.Longitude) {
		score -= regionPenalty
	}
	if score < 0 {
		score = 0
	}

	band := bandForScore(score)
	return Quality{
		Score:       score,
		Band:        band,
		Description: fmt.Sprintf("gps fix with %.0fm accuracy", sample.AccuracyMeters),
	}
}

func accuracyBaseScore(accuracyMeters float64) float64 {
	switch {
	case accuracyMeters <= 10:
		return 100
	case accuracyMeters <= 50:
		return 90
	case accuracyMeters <= 200:
		return 80
	case accuracyMeters <= 500:
		return 70
	case accuracyMeters <= 1000:
		return 60
	case accuracyMeters <= AccuracyCeilingMeters:
		return 50
	default:
		return 10
	}
}

func bandForScore(score float64) QualityBand {
	switch {
	case score >= 90:
		return BandExcellent
	case score >= 75:
		return BandGood
	case score >= 55:
		return BandFair
	case score >= 40:
		return BandPoor
	default:
		return BandUnacceptable
	}
}
