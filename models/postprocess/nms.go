// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"
	"sync"

	"github.com/nvr-ai/go-yolo11/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// ConfidenceThreshold drops proposals scoring below it before suppression.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// IoUThreshold suppresses proposals whose overlap with a kept one exceeds it.
	IoUThreshold float32 `json:"iou_threshold"        yaml:"iou_threshold"`
	// ClassAware suppresses only within the same class. The default suppresses
	// across classes.
	ClassAware bool `json:"class_aware"          yaml:"class_aware"`
	// Greedy forces the single goroutine implementation.
	Greedy bool `json:"greedy"               yaml:"greedy"`
	// NumWorkers is the number of goroutines for parallel IoU computation.
	NumWorkers int `json:"num_workers"          yaml:"num_workers"`
	// MaxDetections caps the number of kept proposals. Zero means unlimited.
	MaxDetections int `json:"max_detections"       yaml:"max_detections"`
	// Classes keeps only proposals of these labels, applied before
	// suppression. Empty keeps every label.
	Classes []int `json:"-" yaml:"-"`
}

// DefaultNMSConfig returns the YOLO11 defaults: 0.25 confidence, 0.45 IoU,
// label-agnostic greedy suppression.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		ConfidenceThreshold: 0.25,
		IoUThreshold:        0.45,
		Greedy:              true,
		NumWorkers:          1,
	}
}

// Valid reports whether both thresholds lie in [0, 1].
func (c NMSConfig) Valid() bool {
	return c.ConfidenceThreshold >= 0 && c.ConfidenceThreshold <= 1 &&
		c.IoUThreshold >= 0 && c.IoUThreshold <= 1
}

// suppresses reports whether a kept anchor removes other.
func (c *NMSConfig) suppresses(anchor, other Result) bool {
	if c.ClassAware && anchor.Class != other.Class {
		return false
	}
	return images.CalculateIoU(anchor.Box, other.Box) > c.IoUThreshold
}

// SortByScore sorts results by descending score in place. Equal scores keep
// their input order.
func SortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// FilterByScore returns the results scoring at least threshold, in order.
func FilterByScore(results []Result, threshold float32) []Result {
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// FilterByClass returns the results whose class is in classes, in order.
// Empty classes returns results unchanged.
func FilterByClass(results []Result, classes []int) []Result {
	if len(classes) == 0 {
		return results
	}
	keep := make(map[int]struct{}, len(classes))
	for _, c := range classes {
		keep[c] = struct{}{}
	}
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if _, ok := keep[r.Class]; ok {
			kept = append(kept, r)
		}
	}
	return kept
}

// SuppressFunc is a suppression backend with the contract of Suppress.
type SuppressFunc func(proposals []Result, config NMSConfig) []Result

// Suppress runs the full suppression pass: confidence pre-filter, stable
// descending sort, then greedy or parallel NMS per config.
//
// Arguments:
//   - proposals: Unordered proposals. The slice is not modified.
//   - config: Thresholds and policy.
//
// Returns:
//   - []Result: Kept proposals in acceptance order. Empty when config
//     thresholds are outside [0, 1].
func Suppress(proposals []Result, config NMSConfig) []Result {
	if !config.Valid() {
		return nil
	}

	candidates := FilterByScore(proposals, config.ConfidenceThreshold)
	SortByScore(candidates)

	if config.Greedy || config.NumWorkers <= 1 {
		return ApplyGreedyNMS(candidates, &config)
	}
	return ApplyNMS(candidates, &config)
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: IoU threshold, class policy and cap.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		if config.MaxDetections > 0 && len(filtered) == config.MaxDetections {
			break
		}

		for j := i + 1; j < n; j++ {
			if !used[j] && config.suppresses(anchor, detections[j]) {
				used[j] = true
			}
		}
	}

	return filtered
}

// ApplyNMS is ApplyGreedyNMS with the IoU scan of each kept anchor split
// across config.NumWorkers goroutines. The output is identical to
// ApplyGreedyNMS.
//
// Arguments:
//   - detections: Sorted slice of detections (highest score first).
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func ApplyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}
	workers := config.NumWorkers
	if workers <= 1 {
		return ApplyGreedyNMS(detections, config)
	}

	used := make([]bool, n)
	filtered := make([]Result, 0, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		if config.MaxDetections > 0 && len(filtered) == config.MaxDetections {
			break
		}

		// Each worker owns a disjoint range of used, so no locking is needed.
		rest := n - (i + 1)
		chunk := (rest + workers - 1) / workers
		for start := i + 1; start < n; start += chunk {
			end := min(start+chunk, n)
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for j := start; j < end; j++ {
					if !used[j] && config.suppresses(anchor, detections[j]) {
						used[j] = true
					}
				}
			}(start, end)
		}
		wg.Wait()
	}

	return filtered
}
