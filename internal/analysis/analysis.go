package analysis

import (
	"fmt"
	"sort"

	"github.com/evalops/evalsync/internal/scoring"
	"github.com/evalops/evalsync/internal/types"
)

// Analyzer rolls per-behavior scores up to driver, person, cohort, and
// year-over-year aggregates. All aggregation is arithmetic means of
// per-evaluation scores on the model's raw scale; normalized views are
// derived from the raw means.
type Analyzer struct {
	model     types.Model
	normalize bool
}

// New builds an analyzer for one scoring model. The model is checked here
// so a bad selector fails at configuration time rather than per unit.
func New(model types.Model, normalize bool) (*Analyzer, error) {
	if !model.IsValid() {
		return nil, fmt.Errorf("%w %q", types.ErrUnknownModel, model)
	}
	return &Analyzer{model: model, normalize: normalize}, nil
}

// BehaviorScore is the scored view of one behavior within a unit: the mean
// collaborator and group scores over its surviving evaluations.
type BehaviorScore struct {
	Driver       string            `json:"driver"`
	Behavior     string            `json:"behavior"`
	Collaborator types.ScoreResult `json:"collaborator"`
	Group        types.ScoreResult `json:"group"`
	// Difference is collaborator minus group on the raw scale.
	Difference  float64 `json:"difference"`
	Evaluations int     `json:"evaluations"`
}

// DriverScore aggregates the behaviors of one driver.
type DriverScore struct {
	Driver       string            `json:"driver"`
	Collaborator types.ScoreResult `json:"collaborator"`
	Group        types.ScoreResult `json:"group"`
	Difference   float64           `json:"difference"`
	Behaviors    int               `json:"behaviors"`
}

// PersonScore aggregates one (person, year) unit. Rank is filled when the
// score is produced as part of a cohort comparison.
type PersonScore struct {
	Person       string            `json:"person"`
	Year         int               `json:"year"`
	DisplayName  string            `json:"display_name,omitempty"`
	Behaviors    []BehaviorScore   `json:"behaviors"`
	Drivers      []DriverScore     `json:"drivers"`
	Collaborator types.ScoreResult `json:"collaborator"`
	Group        types.ScoreResult `json:"group"`
	Difference   float64           `json:"difference"`
	Rank         int               `json:"rank,omitempty"`
}

// ScorePerson computes behavior, driver, and overall aggregates for one
// record. Evaluations that cannot be scored are skipped so that uninformative
// vectors never drag an aggregate toward zero. Returns nil when the record
// has no scorable evaluation at all.
func (a *Analyzer) ScorePerson(record *types.PersonYearRecord) *PersonScore {
	score := &PersonScore{
		Person:      record.Person,
		Year:        record.Year,
		DisplayName: record.DisplayName,
	}

	var collabAll, groupAll []float64
	for _, driver := range record.Drivers {
		var collabDriver, groupDriver []float64
		behaviorsScored := 0

		for _, behavior := range driver.Behaviors {
			var collab, group []float64
			for _, eval := range behavior.Evaluations {
				c, err := scoring.Score(eval.Collaborator, a.model, false)
				if err != nil {
					continue
				}
				g, err := scoring.Score(eval.Group, a.model, false)
				if err != nil {
					continue
				}
				collab = append(collab, c.Raw)
				group = append(group, g.Raw)
			}
			if len(collab) == 0 {
				continue
			}

			collabMean, groupMean := mean(collab), mean(group)
			score.Behaviors = append(score.Behaviors, BehaviorScore{
				Driver:       driver.Name,
				Behavior:     behavior.Name,
				Collaborator: a.resultOf(collabMean),
				Group:        a.resultOf(groupMean),
				Difference:   collabMean - groupMean,
				Evaluations:  len(collab),
			})
			collabDriver = append(collabDriver, collabMean)
			groupDriver = append(groupDriver, groupMean)
			behaviorsScored++
		}

		if behaviorsScored == 0 {
			continue
		}
		collabMean, groupMean := mean(collabDriver), mean(groupDriver)
		score.Drivers = append(score.Drivers, DriverScore{
			Driver:       driver.Name,
			Collaborator: a.resultOf(collabMean),
			Group:        a.resultOf(groupMean),
			Difference:   collabMean - groupMean,
			Behaviors:    behaviorsScored,
		})
		collabAll = append(collabAll, collabDriver...)
		groupAll = append(groupAll, groupDriver...)
	}

	if len(collabAll) == 0 {
		return nil
	}
	collabMean, groupMean := mean(collabAll), mean(groupAll)
	score.Collaborator = a.resultOf(collabMean)
	score.Group = a.resultOf(groupMean)
	score.Difference = collabMean - groupMean
	return score
}

// resultOf wraps a raw-scale mean in a ScoreResult, deriving the normalized
// value and category the same way single-vector scoring does.
func (a *Analyzer) resultOf(raw float64) types.ScoreResult {
	result := types.ScoreResult{Model: a.model, Raw: raw}
	if a.model == types.ModelNPS {
		result.Category = scoring.CategorizeRaw(raw)
		if a.normalize {
			n := scoring.Normalize(raw)
			result.Normalized = &n
		}
	}
	return result
}

// Cohort is the comparable set of units evaluated in one year, ranked by
// collaborator score. Ties keep the input order of the records.
type Cohort struct {
	Year    int            `json:"year"`
	People  []*PersonScore `json:"people"`
	Skipped []string       `json:"skipped,omitempty"`
}

// CompareYear scores every record of the given year and ranks the cohort.
// Records with nothing to score are reported in Skipped and excluded.
func (a *Analyzer) CompareYear(year int, records []*types.PersonYearRecord) *Cohort {
	cohort := &Cohort{Year: year}

	for _, record := range records {
		if record.Year != year {
			continue
		}
		score := a.ScorePerson(record)
		if score == nil {
			cohort.Skipped = append(cohort.Skipped, record.Person)
			continue
		}
		cohort.People = append(cohort.People, score)
	}

	sort.SliceStable(cohort.People, func(i, j int) bool {
		return cohort.People[i].Collaborator.Raw > cohort.People[j].Collaborator.Raw
	})
	for i, person := range cohort.People {
		person.Rank = i + 1
	}
	return cohort
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
