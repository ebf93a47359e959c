package common

import (
	"sync"
	"time"
)

// PerformanceMetrics defines the interface for performance tracking
type PerformanceMetrics interface {
	GetMetrics() map[string]interface{}
}

// BaseMetrics provides common fields used across different metrics types
type BaseMetrics struct {
	TotalOperations int64
	SuccessfulOps   int64
	FailedOps       int64
	LastOperation   time.Time
	Mu              sync.RWMutex
}

// UpdateBaseMetrics updates common metrics fields
func (bm *BaseMetrics) UpdateBaseMetrics(success bool) {
	bm.Mu.Lock()
	defer bm.Mu.Unlock()

	bm.TotalOperations++
	if success {
		bm.SuccessfulOps++
	} else {
		bm.FailedOps++
	}
	bm.LastOperation = time.Now()
}

// GetBaseMetrics returns the common metrics as a map
func (bm *BaseMetrics) GetBaseMetrics() map[string]interface{} {
	bm.Mu.RLock()
	defer bm.Mu.RUnlock()

	return map[string]interface{}{
		"total_operations": bm.TotalOperations,
		"successful_ops":   bm.SuccessfulOps,
		"failed_ops":       bm.FailedOps,
		"last_operation":   bm.LastOperation,
	}
}

// GenerationMetrics tracks studies pushed through the orchestrator
type GenerationMetrics struct {
	BaseMetrics
	TotalStudies int64
	TotalImages  int64
	AverageTime  time.Duration
}

// UpdateMetrics records one Generate call
func (gm *GenerationMetrics) UpdateMetrics(start time.Time, studies, images int, success bool) {
	gm.UpdateBaseMetrics(success)

	gm.Mu.Lock()
	defer gm.Mu.Unlock()

	gm.TotalStudies += int64(studies)
	gm.TotalImages += int64(images)
	duration := time.Since(start)
	if gm.TotalOperations <= 1 {
		gm.AverageTime = duration
	} else {
		gm.AverageTime = (gm.AverageTime*time.Duration(gm.TotalOperations-1) + duration) / time.Duration(gm.TotalOperations)
	}
}

// GetMetrics returns generation metrics as a map
func (gm *GenerationMetrics) GetMetrics() map[string]interface{} {
	metrics := gm.GetBaseMetrics()
	gm.Mu.RLock()
	defer gm.Mu.RUnlock()

	metrics["total_studies"] = gm.TotalStudies
	metrics["total_images"] = gm.TotalImages
	metrics["average_time"] = gm.AverageTime
	return metrics
}
