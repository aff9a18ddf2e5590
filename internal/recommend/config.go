package recommend

import (
	"time"

	"dsa-mcp/internal/stats"
)

// SplitRule chooses how a group is divided into older and recent periods.
type SplitRule int

const (
	// SplitByIndex puts the first two thirds of the time-ordered group in the older period.
	SplitByIndex SplitRule = iota
	// SplitByRecentDays puts orders within RecentDays of the latest one in the recent period.
	SplitByRecentDays
)

// Profile holds the thresholds of one grouping mode.
type Profile struct {
	MinSamples int
	Split      SplitRule
	RecentDays int
	MinPerSide int
	// StripOutliers drops deviations beyond Config.OutlierStd before splitting.
	StripOutliers bool

	CountSaturation   float64
	CountWeight       float64
	StdWeight         float64
	ConsistencyWeight float64
}

// Config controls recommendation generation.
type Config struct {
	Schedule   Profile
	HourBucket Profile

	// MinShift is the smallest change between periods worth reporting.
	MinShift float64
	// LargeDeviation is the recent median above which a window is reported regardless of shift.
	LargeDeviation float64
	OutlierStd     float64

	BaseConfidence float64
	MaxConfidence  float64
	// StdScale is the recent spread (minutes) at which the spread factor reaches 0.
	StdScale float64
	// FallbackStd is used when the recent period has a single value.
	FallbackStd float64
	// Consistency factor: 1 - std/ConsistencyScale, floored at ConsistencyFloor,
	// applied to groups of at least ConsistencyMinSamples.
	ConsistencyScale      float64
	ConsistencyFloor      float64
	ConsistencyMinSamples int

	// BucketHours is the width of the hour buckets used without a schedule.
	BucketHours int
	MaxExamples int

	Trend stats.TrendThresholds
	Now   func() time.Time
}

// DefaultConfig returns the standard generation thresholds.
func DefaultConfig() Config {
	return Config{
		Schedule: Profile{
			MinSamples:      3,
			Split:           SplitByIndex,
			MinPerSide:      3,
			CountSaturation: 15,
			CountWeight:     0.3,
			StdWeight:       0.3,
		},
		HourBucket: Profile{
			MinSamples:        5,
			Split:             SplitByRecentDays,
			RecentDays:        14,
			MinPerSide:        3,
			StripOutliers:     true,
			CountSaturation:   20,
			CountWeight:       0.2,
			StdWeight:         0.2,
			ConsistencyWeight: 0.2,
		},
		MinShift:              15,
		LargeDeviation:        30,
		OutlierStd:            2.5,
		BaseConfidence:        0.4,
		MaxConfidence:         0.95,
		StdScale:              60,
		FallbackStd:           30,
		ConsistencyScale:      120,
		ConsistencyFloor:      0.7,
		ConsistencyMinSamples: 10,
		BucketHours:           1,
		MaxExamples:           5,
		Trend:                 stats.DefaultTrendThresholds(),
		Now:                   time.Now,
	}
}

func (c Config) profile(m Mode) Profile {
	if m == ModeSchedule {
		return c.Schedule
	}
	return c.HourBucket
}
