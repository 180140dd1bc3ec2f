// Package analytics aggregates stored evaluations by comment type.
package analytics

import (
	"math"
	"sort"

	"github.com/t77yq/comment-evaluator/internal/model"
)

// UnknownCommentType labels evaluations whose comment is not in the dataset
const UnknownCommentType = "Unknown"

// AllValues disables a row filter
const AllValues = "All"

// Notes filter values
const (
	NotesWith    = "with"
	NotesWithout = "without"
)

// Row is an evaluation joined with the type of the graded comment
type Row struct {
	model.Evaluation
	CommentType string `json:"comment_type"`
}

// HasNotes reports whether the evaluator left a non-empty note
func (r Row) HasNotes() bool {
	return r.Notes != nil && *r.Notes != ""
}

// Summary holds the headline numbers of the evaluation log
type Summary struct {
	TotalEvaluations int     `json:"total_evaluations"`
	UniqueComments   int     `json:"unique_comments"`
	UniqueAlerts     int     `json:"unique_alerts"`
	AverageGrade     float64 `json:"average_grade"`
}

// GradeStats describes the grade distribution of one comment type.
// StdDev is nil with fewer than two grades. Q1 and Q3 are linearly
// interpolated quartiles.
type GradeStats struct {
	CommentType string   `json:"comment_type"`
	Count       int      `json:"count"`
	Mean        float64  `json:"mean"`
	Median      float64  `json:"median"`
	StdDev      *float64 `json:"std_dev"`
	Min         int      `json:"min"`
	Q1          float64  `json:"q1"`
	Q3          float64  `json:"q3"`
	Max         int      `json:"max"`
}

// GradeCount is one bar of the grade histogram
type GradeCount struct {
	Grade int `json:"grade"`
	Count int `json:"count"`
}

// TypeCount counts notes of one comment type
type TypeCount struct {
	CommentType string  `json:"comment_type"`
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
}

// NotesAnalysis compares evaluations with and without notes
type NotesAnalysis struct {
	TotalWithNotes       int         `json:"total_with_notes"`
	ByType               []TypeCount `json:"by_type"`
	AvgGradeWithNotes    *float64    `json:"avg_grade_with_notes"`
	AvgGradeWithoutNotes *float64    `json:"avg_grade_without_notes"`
}

// RowFilter selects rows for the detailed table. Empty or "All" fields match
// everything; Grade 0 matches every grade.
type RowFilter struct {
	CommentType string `form:"comment_type" json:"comment_type"`
	Grade       int    `form:"grade" json:"grade"`
	Notes       string `form:"notes" json:"notes"`
}

// RowOptions lists the selectable filter values, "All" first
type RowOptions struct {
	CommentTypes []string `json:"comment_types"`
	Grades       []int    `json:"grades"`
	Notes        []string `json:"notes"`
}

// Join attaches the comment type to each evaluation, keeping the input order
func Join(evaluations []model.Evaluation, commentTypes map[string]string) []Row {
	rows := make([]Row, 0, len(evaluations))
	for _, e := range evaluations {
		typ, ok := commentTypes[e.AICommentID]
		if !ok || typ == "" {
			typ = UnknownCommentType
		}
		rows = append(rows, Row{Evaluation: e, CommentType: typ})
	}
	return rows
}

// Summarize computes totals, distinct keys and the mean grade
func Summarize(rows []Row) Summary {
	comments := make(map[string]struct{})
	alerts := make(map[string]struct{})
	grades := make([]int, 0, len(rows))
	for _, r := range rows {
		comments[r.AICommentID] = struct{}{}
		alerts[r.AlertID] = struct{}{}
		grades = append(grades, r.Grade)
	}
	return Summary{
		TotalEvaluations: len(rows),
		UniqueComments:   len(comments),
		UniqueAlerts:     len(alerts),
		AverageGrade:     round2(mean(grades)),
	}
}

// GradeStatsByType groups grades by comment type, sorted by type
func GradeStatsByType(rows []Row) []GradeStats {
	groups := groupGrades(rows, func(Row) bool { return true })

	out := make([]GradeStats, 0, len(groups))
	for _, typ := range sortedKeys(groups) {
		grades := groups[typ]
		sort.Ints(grades)
		stats := GradeStats{
			CommentType: typ,
			Count:       len(grades),
			Mean:        round2(mean(grades)),
			Median:      round2(median(grades)),
			Min:         grades[0],
			Q1:          round2(quantile(grades, 0.25)),
			Q3:          round2(quantile(grades, 0.75)),
			Max:         grades[len(grades)-1],
		}
		if len(grades) > 1 {
			sd := round2(stdDev(grades))
			stats.StdDev = &sd
		}
		out = append(out, stats)
	}
	return out
}

// GradeDistribution counts evaluations per grade, ascending. Grades nobody
// gave are left out.
func GradeDistribution(rows []Row) []GradeCount {
	counts := make(map[int]int)
	for _, r := range rows {
		counts[r.Grade]++
	}
	out := make([]GradeCount, 0, len(counts))
	for grade, n := range counts {
		out = append(out, GradeCount{Grade: grade, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Grade < out[j].Grade })
	return out
}

// AnalyzeNotes counts notes per comment type and compares mean grades
func AnalyzeNotes(rows []Row) NotesAnalysis {
	var with, without []int
	for _, r := range rows {
		if r.HasNotes() {
			with = append(with, r.Grade)
		} else {
			without = append(without, r.Grade)
		}
	}

	analysis := NotesAnalysis{TotalWithNotes: len(with), ByType: []TypeCount{}}
	groups := groupGrades(rows, Row.HasNotes)
	for _, typ := range sortedKeys(groups) {
		n := len(groups[typ])
		analysis.ByType = append(analysis.ByType, TypeCount{
			CommentType: typ,
			Count:       n,
			Percentage:  round1(float64(n) / float64(len(with)) * 100),
		})
	}
	if len(with) > 0 {
		m := round2(mean(with))
		analysis.AvgGradeWithNotes = &m
	}
	if len(without) > 0 {
		m := round2(mean(without))
		analysis.AvgGradeWithoutNotes = &m
	}
	return analysis
}

// Filter returns the rows matching f in input order
func Filter(rows []Row, f RowFilter) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.CommentType != "" && f.CommentType != AllValues && r.CommentType != f.CommentType {
			continue
		}
		if f.Grade != 0 && r.Grade != f.Grade {
			continue
		}
		switch f.Notes {
		case NotesWith:
			if !r.HasNotes() {
				continue
			}
		case NotesWithout:
			if r.HasNotes() {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Options lists the comment types and grades present in rows
func Options(rows []Row) RowOptions {
	types := make(map[string]struct{})
	grades := make(map[int]struct{})
	for _, r := range rows {
		types[r.CommentType] = struct{}{}
		grades[r.Grade] = struct{}{}
	}
	opts := RowOptions{
		CommentTypes: []string{AllValues},
		Grades:       make([]int, 0, len(grades)),
		Notes:        []string{AllValues, NotesWith, NotesWithout},
	}
	for typ := range types {
		opts.CommentTypes = append(opts.CommentTypes, typ)
	}
	sort.Strings(opts.CommentTypes[1:])
	for g := range grades {
		opts.Grades = append(opts.Grades, g)
	}
	sort.Ints(opts.Grades)
	return opts
}

func groupGrades(rows []Row, keep func(Row) bool) map[string][]int {
	groups := make(map[string][]int)
	for _, r := range rows {
		if keep(r) {
			groups[r.CommentType] = append(groups[r.CommentType], r.Grade)
		}
	}
	return groups
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

// median expects xs sorted
func median(xs []int) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(xs[n/2])
	}
	return float64(xs[n/2-1]+xs[n/2]) / 2
}

// quantile interpolates linearly between closest ranks; xs must be sorted
func quantile(xs []int, p float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return float64(xs[lo]) + frac*float64(xs[hi]-xs[lo])
}

// stdDev is the sample standard deviation (n-1)
func stdDev(xs []int) float64 {
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := float64(x) - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
