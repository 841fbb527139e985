// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import (
	"fmt"
	"time"
)

// Statistics tracks notification counts and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames    uint64
	SensorFrames   uint64
	TransferFrames uint64
	SlotInfoFrames uint64
	OtherFrames    uint64
	ShortFrames    uint64
	DeadLetters    uint64 // frames of no known type

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts a decoded notification or a decode error
func (s *Statistics) Update(n Notification, decodeErr error) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		s.ShortFrames++
		return
	}

	switch n.(type) {
	case *SensorFrame:
		s.SensorFrames++
	case *TransferModeFrame:
		s.TransferFrames++
	case *SlotInfoFrame:
		s.SlotInfoFrames++
	case *RawFrame:
		s.DeadLetters++
	default:
		s.OtherFrames++
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.ShortFrames) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var sensorPercent, shortPercent float64
	if s.TotalFrames > 0 {
		sensorPercent = float64(s.SensorFrames) * 100.0 / float64(s.TotalFrames)
		shortPercent = float64(s.ShortFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Sensor Frames:   %8d (%.1f%%)\n", s.SensorFrames, sensorPercent)
	if s.TransferFrames > 0 {
		result += fmt.Sprintf("Transfer Frames: %8d\n", s.TransferFrames)
	}
	if s.SlotInfoFrames > 0 {
		result += fmt.Sprintf("Slot Info:       %8d\n", s.SlotInfoFrames)
	}
	if s.OtherFrames > 0 {
		result += fmt.Sprintf("Other Frames:    %8d\n", s.OtherFrames)
	}
	if s.ShortFrames > 0 {
		result += fmt.Sprintf("Short Frames:    %8d (%.1f%%)\n", s.ShortFrames, shortPercent)
	}
	if s.DeadLetters > 0 {
		result += fmt.Sprintf("Dead Letters:    %8d\n", s.DeadLetters)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
