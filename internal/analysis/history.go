package analysis

import (
	"fmt"
	"sort"

	"github.com/evalops/evalsync/internal/types"
)

type behaviorKey struct {
	driver   string
	behavior string
}

func (k behaviorKey) String() string {
	return fmt.Sprintf("%s :: %s", k.driver, k.behavior)
}

// YearDelta is the change between two consecutive evaluated years, computed
// only over (driver, behavior) keys present in both years. Keys evaluated in
// just one of the pair are listed in Unmatched and excluded from the delta.
type YearDelta struct {
	FromYear  int                `json:"from_year"`
	ToYear    int                `json:"to_year"`
	Delta     float64            `json:"delta"`
	PerDriver map[string]float64 `json:"per_driver,omitempty"`
	Matched   int                `json:"matched"`
	Unmatched []string           `json:"unmatched,omitempty"`
}

// History is one person's trajectory across evaluated years.
type History struct {
	Person string               `json:"person"`
	Years  []int                `json:"years"`
	ByYear map[int]*PersonScore `json:"by_year"`
	Deltas []YearDelta          `json:"deltas,omitempty"`
	// CommonBehaviors maps drivers to the behaviors present in every
	// evaluated year.
	CommonBehaviors map[string][]string `json:"common_behaviors,omitempty"`
	// Improvement is the overall raw-score change from the first evaluated
	// year to the last.
	Improvement float64 `json:"improvement"`
}

// History computes year-over-year aggregates for one person from whatever
// records exist across years. Returns nil when no year has scorable data.
func (a *Analyzer) History(person string, records []*types.PersonYearRecord) *History {
	history := &History{Person: person, ByYear: map[int]*PersonScore{}}

	byYear := map[int][]BehaviorScore{}
	for _, record := range records {
		if record.Person != person {
			continue
		}
		score := a.ScorePerson(record)
		if score == nil {
			continue
		}
		history.ByYear[record.Year] = score
		history.Years = append(history.Years, record.Year)
		byYear[record.Year] = score.Behaviors
	}
	if len(history.Years) == 0 {
		return nil
	}
	sort.Ints(history.Years)

	keysOf := func(year int) map[behaviorKey]BehaviorScore {
		keys := make(map[behaviorKey]BehaviorScore, len(byYear[year]))
		for _, b := range byYear[year] {
			keys[behaviorKey{driver: b.Driver, behavior: b.Behavior}] = b
		}
		return keys
	}

	for i := 1; i < len(history.Years); i++ {
		from, to := history.Years[i-1], history.Years[i]
		history.Deltas = append(history.Deltas, deltaBetween(from, to, keysOf(from), keysOf(to)))
	}

	history.CommonBehaviors = commonBehaviors(history.Years, keysOf)

	if len(history.Years) >= 2 {
		first := history.ByYear[history.Years[0]]
		last := history.ByYear[history.Years[len(history.Years)-1]]
		history.Improvement = last.Collaborator.Raw - first.Collaborator.Raw
	}
	return history
}

// deltaBetween compares two years on the intersection of their behavior
// keys. The delta is the change in mean collaborator score over matched
// behaviors.
func deltaBetween(fromYear, toYear int, from, to map[behaviorKey]BehaviorScore) YearDelta {
	delta := YearDelta{FromYear: fromYear, ToYear: toYear}

	matched := make([]behaviorKey, 0, len(to))
	for key := range to {
		if _, ok := from[key]; ok {
			matched = append(matched, key)
		}
	}
	sortKeys(matched)
	delta.Matched = len(matched)

	for _, key := range matched {
		change := to[key].Collaborator.Raw - from[key].Collaborator.Raw
		delta.Delta += change
		if delta.PerDriver == nil {
			delta.PerDriver = map[string]float64{}
		}
		delta.PerDriver[key.driver] += change
	}
	if len(matched) > 0 {
		delta.Delta /= float64(len(matched))
	}

	// Mean the per-driver sums over that driver's matched behaviors.
	counts := map[string]int{}
	for _, key := range matched {
		counts[key.driver]++
	}
	for driver, sum := range delta.PerDriver {
		delta.PerDriver[driver] = sum / float64(counts[driver])
	}

	for key := range from {
		if _, ok := to[key]; !ok {
			delta.Unmatched = append(delta.Unmatched, fmt.Sprintf("%s (%d only)", key, fromYear))
		}
	}
	for key := range to {
		if _, ok := from[key]; !ok {
			delta.Unmatched = append(delta.Unmatched, fmt.Sprintf("%s (%d only)", key, toYear))
		}
	}
	sort.Strings(delta.Unmatched)
	return delta
}

// commonBehaviors intersects the behavior keys of every evaluated year,
// grouped by driver.
func commonBehaviors(years []int, keysOf func(int) map[behaviorKey]BehaviorScore) map[string][]string {
	if len(years) == 0 {
		return nil
	}

	common := map[behaviorKey]bool{}
	for key := range keysOf(years[0]) {
		common[key] = true
	}
	for _, year := range years[1:] {
		keys := keysOf(year)
		for key := range common {
			if _, ok := keys[key]; !ok {
				delete(common, key)
			}
		}
	}
	if len(common) == 0 {
		return nil
	}

	result := map[string][]string{}
	for key := range common {
		result[key.driver] = append(result[key.driver], key.behavior)
	}
	for driver := range result {
		sort.Strings(result[driver])
	}
	return result
}

// YearCriteria maps each year present in the records to its evaluation
// criteria: driver names to sorted behavior names.
func YearCriteria(records []*types.PersonYearRecord) map[int]map[string][]string {
	criteria := map[int]map[string]map[string]bool{}
	for _, record := range records {
		for _, driver := range record.Drivers {
			for _, behavior := range driver.Behaviors {
				if criteria[record.Year] == nil {
					criteria[record.Year] = map[string]map[string]bool{}
				}
				if criteria[record.Year][driver.Name] == nil {
					criteria[record.Year][driver.Name] = map[string]bool{}
				}
				criteria[record.Year][driver.Name][behavior.Name] = true
			}
		}
	}

	result := map[int]map[string][]string{}
	for year, drivers := range criteria {
		result[year] = map[string][]string{}
		for driver, behaviors := range drivers {
			names := make([]string, 0, len(behaviors))
			for name := range behaviors {
				names = append(names, name)
			}
			sort.Strings(names)
			result[year][driver] = names
		}
	}
	return result
}

func sortKeys(keys []behaviorKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].driver != keys[j].driver {
			return keys[i].driver < keys[j].driver
		}
		return keys[i].behavior < keys[j].behavior
	})
}
