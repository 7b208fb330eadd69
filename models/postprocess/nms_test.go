package postprocess

import (
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-yolo11/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x1, y1, x2, y2, score float32, class int) Result {
	return Result{Box: images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}, Score: score, Class: class}
}

func TestSuppressKeepsHigherScoreOfOverlappingPair(t *testing.T) {
	// IoU = 9000 / 10000 = 0.9.
	high := box(0, 0, 100, 100, 0.8, 0)
	low := box(0, 0, 100, 90, 0.6, 0)
	require.InDelta(t, 0.9, images.CalculateIoU(high.Box, low.Box), 1e-6)

	kept := Suppress([]Result{low, high}, NMSConfig{ConfidenceThreshold: 0.25, IoUThreshold: 0.5})
	require.Len(t, kept, 1)
	assert.Equal(t, high, kept[0])
}

func TestSuppressIsLabelAgnosticByDefault(t *testing.T) {
	proposals := []Result{
		box(0, 0, 100, 100, 0.9, 0),
		box(0, 0, 100, 95, 0.7, 1),
	}

	kept := Suppress(proposals, NMSConfig{IoUThreshold: 0.5})
	assert.Len(t, kept, 1, "overlap across labels suppresses by default")

	kept = Suppress(proposals, NMSConfig{IoUThreshold: 0.5, ClassAware: true})
	assert.Len(t, kept, 2, "class-aware suppression keeps other labels")
}

func TestFilterByClass(t *testing.T) {
	proposals := []Result{
		box(0, 0, 100, 100, 0.99, 0),
		box(10, 0, 110, 100, 0.9, 2),
		box(200, 200, 300, 300, 0.8, 7),
	}

	assert.Equal(t, proposals, FilterByClass(proposals, nil))

	kept := FilterByClass(proposals, []int{2, 7})
	require.Len(t, kept, 2)
	assert.Equal(t, 2, kept[0].Class)
	assert.Equal(t, 7, kept[1].Class)

	// Filtering first leaves nothing to suppress the wanted label.
	kept = Suppress(FilterByClass(proposals, []int{2}), NMSConfig{IoUThreshold: 0.45})
	require.Len(t, kept, 1)
	assert.Equal(t, proposals[1], kept[0])
}

func TestSuppressPrefilterAndOrder(t *testing.T) {
	proposals := []Result{
		box(0, 0, 10, 10, 0.3, 0),
		box(100, 100, 110, 110, 0.9, 1),
		box(200, 200, 210, 210, 0.1, 2),
		box(300, 300, 310, 310, 0.5, 3),
	}

	kept := Suppress(proposals, NMSConfig{ConfidenceThreshold: 0.3, IoUThreshold: 0.45})
	require.Len(t, kept, 3)
	assert.Equal(t, []int{1, 3, 0}, []int{kept[0].Class, kept[1].Class, kept[2].Class})
	assert.Equal(t, float32(0.3), kept[2].Score, "threshold is inclusive")
}

func TestSuppressTiesKeepInputOrder(t *testing.T) {
	a := box(0, 0, 10, 10, 0.5, 7)
	b := box(0, 0, 10, 10, 0.5, 8)

	kept := Suppress([]Result{a, b}, NMSConfig{IoUThreshold: 0.5})
	require.Len(t, kept, 1)
	assert.Equal(t, 7, kept[0].Class)
}

func TestSuppressInvalidThresholds(t *testing.T) {
	proposals := []Result{box(0, 0, 10, 10, 0.9, 0)}

	for _, cfg := range []NMSConfig{
		{ConfidenceThreshold: -0.1, IoUThreshold: 0.5},
		{ConfidenceThreshold: 1.1, IoUThreshold: 0.5},
		{ConfidenceThreshold: 0.5, IoUThreshold: 2},
	} {
		assert.Empty(t, Suppress(proposals, cfg), "%+v", cfg)
	}
}

func TestSuppressMaxDetections(t *testing.T) {
	var proposals []Result
	for i := 0; i < 10; i++ {
		x := float32(i * 50)
		proposals = append(proposals, box(x, 0, x+10, 10, float32(i)/10, i))
	}

	kept := Suppress(proposals, NMSConfig{IoUThreshold: 0.5, MaxDetections: 3})
	require.Len(t, kept, 3)
	assert.Equal(t, []int{9, 8, 7}, []int{kept[0].Class, kept[1].Class, kept[2].Class})
}

func randomProposals(rng *rand.Rand, n int) []Result {
	out := make([]Result, n)
	for i := range out {
		x, y := rng.Float32()*600, rng.Float32()*600
		w, h := 10+rng.Float32()*80, 10+rng.Float32()*80
		out[i] = box(x, y, x+w, y+h, rng.Float32(), rng.Intn(3))
	}
	return out
}

func TestApplyNMSMatchesGreedy(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 20; trial++ {
		proposals := randomProposals(rng, 300)
		SortByScore(proposals)

		for _, classAware := range []bool{false, true} {
			greedy := ApplyGreedyNMS(proposals, &NMSConfig{IoUThreshold: 0.3, ClassAware: classAware})
			parallel := ApplyNMS(proposals, &NMSConfig{IoUThreshold: 0.3, ClassAware: classAware, NumWorkers: 4})
			assert.Equal(t, greedy, parallel, "trial %d classAware=%v", trial, classAware)
		}
	}
}

func TestSuppressIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := NMSConfig{ConfidenceThreshold: 0.2, IoUThreshold: 0.45}
	frame := images.IdentityTransform(700, 700)

	once := SuppressAndRemap(randomProposals(rng, 500), frame, cfg)
	require.NotEmpty(t, once)

	again := make([]Result, len(once))
	for i, d := range once {
		again[i] = d.Result()
	}
	twice := SuppressAndRemap(again, frame, cfg)
	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, once[i].Label, twice[i].Label)
		assert.Equal(t, once[i].Score, twice[i].Score)
		assert.InDelta(t, once[i].X, twice[i].X, 1e-3)
		assert.InDelta(t, once[i].Width, twice[i].Width, 1e-3)
	}

	for i := range once {
		for j := i + 1; j < len(once); j++ {
			assert.LessOrEqual(t, images.CalculateIoU(once[i].Rect(), once[j].Rect()), cfg.IoUThreshold+1e-4)
		}
	}
}

func TestEmptyInput(t *testing.T) {
	assert.Nil(t, ApplyGreedyNMS(nil, &NMSConfig{}))
	assert.Nil(t, ApplyNMS(nil, &NMSConfig{NumWorkers: 4}))
	assert.Empty(t, Suppress(nil, DefaultNMSConfig()))
}
