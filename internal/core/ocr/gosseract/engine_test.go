//go:build gosseract

package gosseract

import (
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
)

func TestWordsFromBoxes(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(0, 0, 10, 10), Word: "Total", Confidence: 90, BlockNum: 1, ParNum: 1, LineNum: 1},
		{Box: image.Rect(12, 0, 30, 10), Word: "Debe", Confidence: 80, BlockNum: 1, ParNum: 1, LineNum: 1},
		{Box: image.Rect(0, 20, 10, 30), Word: "632.581,53", Confidence: 70, BlockNum: 1, ParNum: 1, LineNum: 2},
		{Box: image.Rect(0, 40, 10, 50), Word: "Haber", Confidence: 60, BlockNum: 2, ParNum: 1, LineNum: 1},
	}
	words := wordsFromBoxes(boxes)
	if len(words) != 4 {
		t.Fatalf("words = %d", len(words))
	}
	wantLines := []int{0, 0, 1, 2}
	for i, w := range words {
		if w.Line != wantLines[i] {
			t.Errorf("word %d line = %d, want %d", i, w.Line, wantLines[i])
		}
	}
	if words[0].Confidence != 0.9 {
		t.Errorf("confidence = %v", words[0].Confidence)
	}
	if words[1].Bounds != image.Rect(12, 0, 30, 10) {
		t.Errorf("bounds = %v", words[1].Bounds)
	}
}
