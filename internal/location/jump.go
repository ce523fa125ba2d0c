package location

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultMaxSpeedKmh caps plausible ground movement between samples.
	DefaultMaxSpeedKmh = 200.0
	// MaxJumpDistanceKm flags a jump regardless of elapsed time.
	MaxJumpDistanceKm = 500.0
	// MinJumpInterval is the shortest gap over which a speed estimate is
	// considered reliable. Shorter gaps yield an inconclusive result.
	MinJumpInterval = 10 * time.Second

	earthRadiusKm = 6371.0
)

// JumpResult describes whether movement between two samples is physically
// plausible.
type JumpResult struct {
	DistanceKm    float64
	ElapsedSec    float64
	SpeedKmh      float64
	IsUnrealistic bool
	Inconclusive  bool
	Reason        string
}

// DetectJump compares consecutive samples by great-circle distance and
// wall-clock gap. maxSpeedKmh <= 0 falls back to DefaultMaxSpeedKmh.
func DetectJump(previous, next Sample, maxSpeedKmh float64) JumpResult {
	if maxSpeedKmh <= 0 {
		maxSpeedKmh = DefaultMaxSpeedKmh
	}

	distance := HaversineKm(previous.Latitude, previous.Longitude, next.Latitude, next.Longitude)
	elapsed := next.Timestamp.Sub(previous.Timestamp)
	result := JumpResult{
		DistanceKm: distance,
		ElapsedSec: elapsed.Seconds(),
	}

	if elapsed < MinJumpInterval {
		result.Inconclusive = true
		result.Reason = fmt.Sprintf("interval %.1fs below %s minimum; speed estimate unreliable", elapsed.Seconds(), MinJumpInterval)
		return result
	}

	result.SpeedKmh = distance / elapsed.Hours()
	if result.SpeedKmh > maxSpeedKmh {
		result.IsUnrealistic = true
		result.Reason = fmt.Sprintf("implied speed %.1f km/h exceeds %.0f km/h", result.SpeedKmh, maxSpeedKmh)
		return result
	}
	if distance > MaxJumpDistanceKm {
		result.IsUnrealistic = true
		result.Reason = fmt.Sprintf("distance %.1f km exceeds %.0f km between consecutive samples", distance, MaxJumpDistanceKm)
	}
	return result
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
