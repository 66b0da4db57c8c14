package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/evalops/evalsync/internal/analysis"
	"github.com/evalops/evalsync/internal/types"
)

// fmtScore renders a score with its normalized view when present, e.g.
// "10.00" or "10.00 (100.0)".
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

// personLabel renders "Display Name (person)" or just the person key.
func personLabel(person, displayName string) string {
	if displayName != "" && displayName != person {
		return fmt.Sprintf("%s (%s)", displayName, person)
	}
	return person
}

// printPersonScore renders the per-behavior and per-driver breakdown of one
// scored unit.
func printPersonScore(score *analysis.PersonScore) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("%s, %d", personLabel(score.Person, score.DisplayName), score.Year)))

	for _, driver := range score.Drivers {
		fmt.Printf("  %s\n", bold(driver.Driver))
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

	fmt.Printf("\n  Overall: %s vs group %s, difference %+.2f",
		fmtScore(score.Collaborator), fmtScore(score.Group), score.Difference)
	if score.Collaborator.Category != types.CategoryNone {
		cat := score.Collaborator.Category
		fmt.Printf("  [%s]", categoryColor(cat)(string(cat)))
	}
	fmt.Println()
	fmt.Println()
}
