package verify

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"golang.org/x/image/draw"

	"siteforge/engine/models"
)

// averageHash computes a 64-bit perceptual hash: downscale to 8x8
// grayscale, threshold each pixel against the mean. Images that look alike
// produce hashes with a small Hamming distance even after lossy
// re-encoding, which is what recompressing CSS/JS/images in the pipeline
// does to page screenshots.
func averageHash(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	const size = 8
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var sum int
	pixels := make([]uint8, 0, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := dst.GrayAt(x, y).Y
			pixels = append(pixels, v)
			sum += int(v)
		}
	}
	mean := sum / (size * size)

	var hash uint64
	for i, v := range pixels {
		if int(v) >= mean {
			hash |= 1 << uint(i)
		}
	}
	return hash, nil
}

func hammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// VisualDiff compares every page's current screenshot against its baseline
// (spec §4.6 "Visual"). Pages missing either screenshot are reported
// "failed" rather than silently skipped.
func VisualDiff(baseline, current map[string][]byte) []models.VisualResult {
	var out []models.VisualResult
	for pageURL, curBytes := range current {
		baseBytes, ok := baseline[pageURL]
		if !ok || len(curBytes) == 0 {
			out = append(out, models.VisualResult{PageURL: pageURL, Status: "failed", Score: 0})
			continue
		}
		curHash, err1 := averageHash(curBytes)
		baseHash, err2 := averageHash(baseBytes)
		if err1 != nil || err2 != nil {
			out = append(out, models.VisualResult{PageURL: pageURL, Status: "failed", Score: 0})
			continue
		}
		dist := hammingDistance(curHash, baseHash)
		score := 1.0 - float64(dist)/64.0
		status := "needs-review"
		switch {
		case dist <= visualIdenticalMaxDistance:
			status = "identical"
		case dist <= visualAcceptableMaxDistance:
			status = "acceptable"
		}
		out = append(out, models.VisualResult{PageURL: pageURL, Status: status, Score: score})
	}
	return out
}
