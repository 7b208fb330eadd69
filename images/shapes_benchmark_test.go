package images

import (
	"image"
	"math/rand"
	"testing"
)

func BenchmarkIoU_PartialOverlap(b *testing.B) {
	r1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	r2 := Rect{X1: 50, Y1: 50, X2: 150, Y2: 150}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

func BenchmarkIoU_RandomPairs(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	pairs := make([][2]Rect, 1024)
	for i := range pairs {
		for k := 0; k < 2; k++ {
			x, y := rng.Float32()*600, rng.Float32()*600
			pairs[i][k] = RectXYWH(x, y, 10+rng.Float32()*100, 10+rng.Float32()*100)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := pairs[i%len(pairs)]
		_ = CalculateIoU(p[0], p[1])
	}
}

func BenchmarkImageRectangle_PartialOverlap(b *testing.B) {
	r1 := image.Rect(0, 0, 100, 100)
	r2 := image.Rect(50, 50, 150, 150)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = imageRectangleIoU(r1, r2)
	}
}
