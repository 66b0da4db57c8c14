package structure

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AdaptMode selects how the adapter materializes files in the target tree.
type AdaptMode string

const (
	// AdaptCopy duplicates each file, preserving its modification time.
	AdaptCopy AdaptMode = "copy"
	// AdaptLink creates symlinks back to the source files.
	AdaptLink AdaptMode = "link"
)

// IsValid checks if the adapt mode value is valid.
func (m AdaptMode) IsValid() bool {
	return m == AdaptCopy || m == AdaptLink
}

// AdaptReport summarizes one adapter run.
type AdaptReport struct {
	Materialized int      `json:"materialized"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	Issues       []string `json:"issues,omitempty"`
}

// Adapt materializes the units reachable through src as a canonical
// <year>/<person> tree under dst, for consumers that cannot read inverted
// trees. Existing destination files are skipped unless overwrite is set.
// Per-file failures are recorded in the report and do not stop the run.
func Adapt(src *Resolver, dst string, mode AdaptMode, overwrite bool) (*AdaptReport, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown adapt mode %q", mode)
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}

	report := &AdaptReport{}
	err := src.Walk(func(u Unit) error {
		targetDir := filepath.Join(dst, strconv.Itoa(u.Year), u.Person)
		if err := os.MkdirAll(targetDir, 0755); err != nil {
			report.Failed += len(u.Files)
			report.Issues = append(report.Issues, fmt.Sprintf("%s: %v", u, err))
			return nil
		}
		for _, file := range u.Files {
			target := filepath.Join(targetDir, filepath.Base(file))
			if _, err := os.Lstat(target); err == nil {
				if !overwrite {
					report.Skipped++
					continue
				}
				if err := os.Remove(target); err != nil {
					report.Failed++
					report.Issues = append(report.Issues, fmt.Sprintf("%s: %v", file, err))
					continue
				}
			}
			if err := materialize(file, target, mode); err != nil {
				report.Failed++
				report.Issues = append(report.Issues, fmt.Sprintf("%s: %v", file, err))
				continue
			}
			report.Materialized++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func materialize(source, target string, mode AdaptMode) error {
	if mode == AdaptLink {
		abs, err := filepath.Abs(source)
		if err != nil {
			return err
		}
		return os.Symlink(abs, target)
	}
	return copyFile(source, target)
}

// copyFile copies source to target and carries the source's modification
// time over, so fingerprint short-circuits keep working on the copy.
func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(target, info.ModTime(), info.ModTime())
}

// Describe renders a one-line human summary of the report.
func (r *AdaptReport) Describe() string {
	parts := []string{fmt.Sprintf("%d materialized", r.Materialized)}
	if r.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", r.Skipped))
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	return strings.Join(parts, ", ")
}
