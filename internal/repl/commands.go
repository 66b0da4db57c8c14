package repl

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/evalops/evalsync/internal/types"
)

// cmdPeople lists everyone with a stored result, with their evaluated years.
func (r *REPL) cmdPeople(args []string) error {
	ctx := r.ctx

	results, err := r.store.ListUnitResults(ctx)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}
	if len(results) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s The ledger is empty. Run 'evalsync sync' first.\n\n", yellow("ℹ"))
		return nil
	}

	years := make(map[string][]int)
	for _, result := range results {
		years[result.Person] = append(years[result.Person], result.Year)
	}
	people := make([]string, 0, len(years))
	for person := range years {
		people = append(people, person)
	}
	sort.Strings(people)

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("People"))
	for i, person := range people {
		sort.Ints(years[person])
		fmt.Printf("%2d. %s  %v\n", i+1, green(person), years[person])
	}
	fmt.Println()

	return nil
}

// cmdYears lists evaluated years with unit counts.
func (r *REPL) cmdYears(args []string) error {
	ctx := r.ctx

	results, err := r.store.ListUnitResults(ctx)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}
	if len(results) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s The ledger is empty. Run 'evalsync sync' first.\n\n", yellow("ℹ"))
		return nil
	}

	counts := make(map[int]int)
	for _, result := range results {
		counts[result.Year]++
	}
	years := make([]int, 0, len(counts))
	for year := range counts {
		years = append(years, year)
	}
	sort.Ints(years)

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Years"))
	for _, year := range years {
		fmt.Printf("  %d  %d units\n", year, counts[year])
	}
	fmt.Println()

	return nil
}

// cmdScore scores one (person, year) unit and prints the breakdown.
func (r *REPL) cmdScore(args []string) error {
	ctx := r.ctx

	if len(args) != 2 {
		return fmt.Errorf("usage: score <person> <year>")
	}
	person := args[0]
	year, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[1])
	}

	result, err := r.store.GetUnitResult(ctx, person, year)
	if err != nil {
		return fmt.Errorf("failed to get result: %w", err)
	}
	if result == nil {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No stored result for %s/%d.\n\n", yellow("ℹ"), person, year)
		return nil
	}

	record, err := result.DecodeRecord()
	if err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	if record == nil {
		return fmt.Errorf("no record stored for %s/%d", person, year)
	}

	score := r.analyzer.ScorePerson(record)
	if score == nil {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s Nothing scorable for %s/%d.\n\n", yellow("ℹ"), person, year)
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	name := score.Person
	if score.DisplayName != "" && score.DisplayName != score.Person {
		name = fmt.Sprintf("%s (%s)", score.DisplayName, score.Person)
	}
	fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("%s, %d", name, score.Year)))

	for _, driver := range score.Drivers {
		fmt.Printf("  %s\n", color.New(color.Bold).Sprint(driver.Driver))
		for _, behavior := range score.Behaviors {
			if behavior.Driver != driver.Driver {
				continue
			}
			fmt.Printf("    %-40s %s vs %s  %+.2f\n",
				behavior.Behavior, fmtScore(behavior.Collaborator),
				fmtScore(behavior.Group), behavior.Difference)
		}
		fmt.Printf("    %-40s %s vs %s  %+.2f\n",
			"(driver mean)", fmtScore(driver.Collaborator),
			fmtScore(driver.Group), driver.Difference)
	}

	catColor := categoryColor(score.Collaborator.Category)
	fmt.Printf("\n  Overall: %s vs group %s, difference %+.2f",
		fmtScore(score.Collaborator), fmtScore(score.Group), score.Difference)
	if score.Collaborator.Category != types.CategoryNone {
		fmt.Printf("  [%s]", catColor(string(score.Collaborator.Category)))
	}
	fmt.Println()
	fmt.Println()

	return nil
}

// cmdCompare ranks a year's cohort.
func (r *REPL) cmdCompare(args []string) error {
	ctx := r.ctx

	if len(args) != 1 {
		return fmt.Errorf("usage: compare <year>")
	}
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[0])
	}

	results, err := r.store.ListUnitResultsByYear(ctx, year)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}
	if len(results) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No stored results for %d.\n\n", yellow("ℹ"), year)
		return nil
	}

	records, undecodable := decodeRecords(results)
	cohort := r.analyzer.CompareYear(year, records)

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("Cohort %d", year)))

	for _, p := range cohort.People {
		name := p.Person
		if p.DisplayName != "" && p.DisplayName != p.Person {
			name = fmt.Sprintf("%s (%s)", p.DisplayName, p.Person)
		}
		line := fmt.Sprintf("%2d. %-30s %s vs %s  %+.2f",
			p.Rank, name, fmtScore(p.Collaborator), fmtScore(p.Group), p.Difference)
		if p.Collaborator.Category != types.CategoryNone {
			line += fmt.Sprintf("  %s", categoryColor(p.Collaborator.Category)(string(p.Collaborator.Category)))
		}
		fmt.Println(line)
	}

	if len(cohort.Skipped) > 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s nothing scorable: %v\n", gray("skipped"), cohort.Skipped)
	}
	if undecodable > 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s %d stored records could not be decoded\n", yellow("!"), undecodable)
	}
	fmt.Println()

	return nil
}

// cmdHistory prints one person's year-over-year trajectory.
func (r *REPL) cmdHistory(args []string) error {
	ctx := r.ctx

	if len(args) != 1 {
		return fmt.Errorf("usage: history <person>")
	}
	person := args[0]

	results, err := r.store.ListUnitResultsByPerson(ctx, person)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}
	if len(results) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No stored results for %s.\n\n", yellow("ℹ"), person)
		return nil
	}

	records, _ := decodeRecords(results)
	history := r.analyzer.History(person, records)
	if history == nil {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s Nothing scorable for %s.\n\n", yellow("ℹ"), person)
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan(person))

	for _, year := range history.Years {
		score := history.ByYear[year]
		fmt.Printf("  %d  %s vs %s  %+.2f\n",
			year, fmtScore(score.Collaborator), fmtScore(score.Group), score.Difference)
	}

	for _, delta := range history.Deltas {
		fmt.Printf("\n  %d → %d: %+.2f over %d matched behaviors\n",
			delta.FromYear, delta.ToYear, delta.Delta, delta.Matched)

		drivers := make([]string, 0, len(delta.PerDriver))
		for driver := range delta.PerDriver {
			drivers = append(drivers, driver)
		}
		sort.Strings(drivers)
		for _, driver := range drivers {
			fmt.Printf("    %-40s %+.2f\n", driver, delta.PerDriver[driver])
		}
		if len(delta.Unmatched) > 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("    %s %d behaviors not present in both years\n", gray("!"), len(delta.Unmatched))
		}
	}

	if len(history.Years) >= 2 {
		fmt.Printf("\n  Overall change %d to %d: %+.2f\n",
			history.Years[0], history.Years[len(history.Years)-1], history.Improvement)
	}
	fmt.Println()

	return nil
}

// cmdRuns shows recent sync runs.
func (r *REPL) cmdRuns(args []string) error {
	ctx := r.ctx

	runs, err := r.store.ListRuns(ctx, 10)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No sync runs recorded yet.\n\n", yellow("ℹ"))
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Recent Runs"))

	for i, run := range runs {
		status := green("✓")
		if run.Error != "" {
			status = red("✗")
		} else if run.FinishedAt == nil {
			status = yellow("⚡")
		}

		fmt.Printf("%2d. %s %s  %s  %d processed, %d unchanged, %d issues, %d failed  (%s)\n",
			i+1, status,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Model,
			run.Processed, run.Unchanged, run.Issues, run.Failed,
			run.Duration().Round(time.Millisecond))
		if run.Error != "" {
			fmt.Printf("      %s\n", red(run.Error))
		}
	}
	fmt.Println()

	return nil
}

// decodeRecords unpacks the stored record of each result, counting the ones
// that cannot be decoded.
func decodeRecords(results []*types.UnitResult) ([]*types.PersonYearRecord, int) {
	records := make([]*types.PersonYearRecord, 0, len(results))
	undecodable := 0
	for _, result := range results {
		record, err := result.DecodeRecord()
		if err != nil || record == nil {
			undecodable++
			continue
		}
		records = append(records, record)
	}
	return records, undecodable
}

// fmtScore renders a score with its normalized view when present.
func fmtScore(r types.ScoreResult) string {
	if r.Normalized != nil {
		return fmt.Sprintf("%.2f (%.1f)", r.Raw, *r.Normalized)
	}
	return fmt.Sprintf("%.2f", r.Raw)
}

// categoryColor picks the display color for a category band.
func categoryColor(c types.Category) func(a ...interface{}) string {
	switch c {
	case types.CategoryExcellent, types.CategoryGood:
		return color.New(color.FgGreen).SprintFunc()
	case types.CategoryRegular:
		return color.New(color.FgYellow).SprintFunc()
	case types.CategoryBelow, types.CategoryUnsatisfactory:
		return color.New(color.FgRed).SprintFunc()
	}
	return color.New(color.FgHiBlack).SprintFunc()
}
