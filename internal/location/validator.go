// Package location validates field GPS samples and scores whether they may
// anchor an onsite-visit milestone.
package location

import (
	"fmt"
	"math"
	"time"
)

// SampleSource tells how a coordinate pair was produced.
type SampleSource string

const (
	SourceGPS    SampleSource = "gps"
	SourceManual SampleSource = "manual"
)

const (
	// AccuracyCeilingMeters is the hard rejection bound for GPS samples.
	AccuracyCeilingMeters = 3000.0
	// StaleWarningAge marks samples worth a staleness warning.
	StaleWarningAge = 5 * time.Minute
	// coordinatePrecision rounds normalized coordinates to 6 decimals.
	coordinatePrecision = 1e6
)

// Sample is a raw field location reading.
type Sample struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	Source         SampleSource
	Timestamp      time.Time
}

// Region is the expected geographic bounding box for field operations.
type Region struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// Contains reports whether the sample's coordinates fall inside the region.
func (r Region) Contains(lat, lon float64) bool {
	return lat >= r.MinLatitude && lat <= r.MaxLatitude &&
		lon >= r.MinLongitude && lon <= r.MaxLongitude
}

// ValidationResult is the outcome of ValidateSample. Warnings never block;
// a non-nil error from ValidateSample does.
type ValidationResult struct {
	Normalized Sample
	Warnings   []string
}

// Validator checks samples against the configured operating region.
type Validator struct {
	region Region
	now    func() time.Time
}

// NewValidator builds a validator for the given region.
func NewValidator(region Region) *Validator {
	return &Validator{region: region, now: time.Now}
}

// ValidateSample rejects malformed or hopelessly inaccurate samples and
// attaches non-blocking warnings for suspicious ones. The returned sample
// has coordinates rounded to 6 decimal places.
func (v *Validator) ValidateSample(sample Sample) (*ValidationResult, error) {
	if !isFinite(sample.Latitude) || !isFinite(sample.Longitude) {
		return nil, fmt.Errorf("coordinates must be finite numbers")
	}
	if sample.Latitude < -90 || sample.Latitude > 90 {
		return nil, fmt.Errorf("latitude %.6f out of range [-90, 90]", sample.Latitude)
	}
	if sample.Longitude < -180 || sample.Longitude > 180 {
		return nil, fmt.Errorf("longitude %.6f out of range [-180, 180]", sample.Longitude)
	}
	if sample.Source == SourceGPS && sample.AccuracyMeters > AccuracyCeilingMeters {
		return nil, fmt.Errorf("gps accuracy %.0fm exceeds %.0fm ceiling", sample.AccuracyMeters, AccuracyCeilingMeters)
	}

	result := &ValidationResult{Normalized: sample}
	result.Normalized.Latitude = roundCoordinate(sample.Latitude)
	result.Normalized.Longitude = roundCoordinate(sample.Longitude)

	if !v.region.Contains(sample.Latitude, sample.Longitude) {
		result.Warnings = append(result.Warnings, "coordinates outside expected operating region")
	}
	if !sample.Timestamp.IsZero() && v.now().Sub(sample.Timestamp) > StaleWarningAge {
		result.Warnings = append(result.Warnings, fmt.Sprintf("sample older than %s", StaleWarningAge))
	}
	return result, nil
}

func roundCoordinate(value float64) float64 {
	return math.Round(value*coordinatePrecision) / coordinatePrecision
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
