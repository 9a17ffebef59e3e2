package display

import (
	"fmt"
	"sort"

	"github.com/drakos74/draw-guess/internal/emoji"
	"github.com/drakos74/draw-guess/internal/model"
)

// NoAccuracy is shown before the first sample.
const NoAccuracy = "--"

// Percent formats a probability with one decimal.
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// Accuracy formats the share of confirmed predictions.
func Accuracy(s model.Stats) string {
	a, ok := s.Accuracy()
	if !ok {
		return NoAccuracy
	}
	return Percent(a)
}

// Bars returns one bar per digit ordered by descending confidence.
// Equal confidences keep the digit order.
func Bars(p model.Prediction) []Bar {
	bars := make([]Bar, len(p.Probabilities))
	for i, c := range p.Probabilities {
		bars[i] = Bar{
			Digit:      i,
			Confidence: c,
			Percent:    Percent(c),
			Icon:       emoji.MapConfidence(c),
		}
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Confidence > bars[j].Confidence
	})
	return bars
}

// View renders the prediction.
func View(p model.Prediction) PredictionView {
	digit, confidence := p.Best()
	return PredictionView{
		Digit:      int(digit),
		Confidence: Percent(confidence),
		Bars:       Bars(p),
	}
}
