package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/evalops/evalsync/internal/types"
)

// Weight tables applied positionally to the six frequency slots. Slot 0
// ("not informed") carries weight zero in both models and never counts
// toward the denominator.
var modelWeights = map[types.Model][types.VectorLen]float64{
	types.ModelLegacy: {0, 2.5, 4, 3, 2, 1},
	types.ModelNPS:    {0, 2, 10, 5, -5, -10},
}

// InvalidVectorError reports a frequency vector whose length is not six.
// The owning evaluation is skipped; the rest of the unit still scores.
type InvalidVectorError struct {
	Len int
}

func (e *InvalidVectorError) Error() string {
	return fmt.Sprintf("invalid frequency vector: %d slots, want %d", e.Len, types.VectorLen)
}

// ErrZeroSumVector marks a vector with no marks outside the "not informed"
// slot. Such a vector is treated as absent rather than as a score of zero.
var ErrZeroSumVector = errors.New("frequency vector has no scorable marks")

// bands maps scores to category labels, highest first, inclusive on the
// lower edge. The raw column is the normalized column divided by five and
// shifted back to the [-10, 10] scale.
var bands = []struct {
	raw        float64
	normalized float64
	category   types.Category
}{
	{7.5, 87.5, types.CategoryExcellent},
	{2.5, 62.5, types.CategoryGood},
	{-2.5, 37.5, types.CategoryRegular},
	{-7.5, 12.5, types.CategoryBelow},
	{math.Inf(-1), math.Inf(-1), types.CategoryUnsatisfactory},
}

// Score computes the weighted score of one frequency vector under the given
// model. The raw score is the weighted slot sum divided by the number of
// marks in slots 1..5. NPS results carry a category label and, when
// normalize is set, a 0..100 normalized value. The normalize flag has no
// effect on the legacy model.
func Score(vec types.FrequencyVector, model types.Model, normalize bool) (types.ScoreResult, error) {
	if len(vec) != types.VectorLen {
		return types.ScoreResult{}, &InvalidVectorError{Len: len(vec)}
	}
	weights, ok := modelWeights[model]
	if !ok {
		return types.ScoreResult{}, fmt.Errorf("%w %q", types.ErrUnknownModel, model)
	}
	denom := vec.ScorableSum()
	if denom == 0 {
		return types.ScoreResult{}, ErrZeroSumVector
	}

	var sum float64
	for i, count := range vec {
		sum += float64(count) * weights[i]
	}
	raw := sum / float64(denom)

	result := types.ScoreResult{Model: model, Raw: raw}
	if model == types.ModelNPS {
		result.Category = CategorizeRaw(raw)
		if normalize {
			n := Normalize(raw)
			result.Normalized = &n
		}
	}
	return result, nil
}

// Normalize remaps an NPS raw score from [-10, 10] to [0, 100].
func Normalize(raw float64) float64 {
	return (raw + 10) * 5
}

// Denormalize inverts Normalize.
func Denormalize(normalized float64) float64 {
	return normalized/5 - 10
}

// CategorizeRaw returns the category band for a raw NPS score.
func CategorizeRaw(raw float64) types.Category {
	for _, b := range bands {
		if raw >= b.raw {
			return b.category
		}
	}
	return types.CategoryUnsatisfactory
}

// CategorizeNormalized returns the category band for a 0..100 score.
func CategorizeNormalized(normalized float64) types.Category {
	for _, b := range bands {
		if normalized >= b.normalized {
			return b.category
		}
	}
	return types.CategoryUnsatisfactory
}
