package linear

import "testing"

func TestTrainLogisticSeparatesUrgencyFeatures(t *testing.T) {
	// Feature vectors: {matched rules, urgency rank, term count}.
	samples := [][]float64{
		{0, 0, 0},
		{0, 0, 0},
		{1, 1, 1},
		{2, 4, 3},
		{3, 4, 4},
		{2, 3, 2},
	}
	labels := []float64{0, 0, 0, 1, 1, 1}

	weights, metrics := TrainLogistic(samples, labels, Options{Epochs: 2000, LearningRate: 0.1})
	if metrics.Accuracy < 0.8 {
		t.Fatalf("expected separable training set, accuracy %f", metrics.Accuracy)
	}
	if len(weights.Coefficients) != 3 {
		t.Fatalf("expected 3 coefficients, got %d", len(weights.Coefficients))
	}
}

func TestPredictMonotonicInMatches(t *testing.T) {
	w := DefaultUrgencyWeights()
	low := Predict(w, []float64{1, 1, 1})
	high := Predict(w, []float64{3, 4, 4})
	if high <= low {
		t.Fatalf("expected stronger features to score higher: %f vs %f", low, high)
	}
	if low < 0 || high > 1 {
		t.Fatalf("scores out of range: %f %f", low, high)
	}
}

func TestTrainLogisticEmptyInput(t *testing.T) {
	weights, metrics := TrainLogistic(nil, nil, Options{})
	if len(weights.Coefficients) != 0 || metrics.Accuracy != 0 {
		t.Fatalf("expected zero-value results for empty input")
	}
}
