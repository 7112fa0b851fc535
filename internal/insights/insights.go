package insights

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Sunnyio/attendanceManager/internal/attendance"
)

const noData = "No attendance data available yet."

// TrendSource supplies the aggregate the report is built from.
type TrendSource interface {
	Trends(ctx context.Context) (attendance.Trends, error)
}

// Generator turns trends into human readable insights.
type Generator interface {
	Generate(ctx context.Context, trends attendance.Trends, query string) (string, error)
}

// Service loads trends and hands them to a Generator.
type Service struct {
	source    TrendSource
	generator Generator
}

func NewService(source TrendSource, generator Generator) *Service {
	if generator == nil {
		generator = Summarizer{}
	}
	return &Service{source: source, generator: generator}
}

// Insights returns a report for the current data, focused on query when set.
func (s *Service) Insights(ctx context.Context, query string) (string, error) {
	trends, err := s.source.Trends(ctx)
	if err != nil {
		return "", err
	}

	text, err := s.generator.Generate(ctx, trends, strings.TrimSpace(query))
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate insights")
		return "", fmt.Errorf("failed to generate insights: %w", err)
	}
	return text, nil
}

// Summarizer builds a deterministic plain-text report without any external provider.
type Summarizer struct {
	// TopAbsentees caps the absence ranking. Zero means 3.
	TopAbsentees int
}

type departmentStats struct {
	name   string
	counts map[attendance.Status]int64
	total  int64
}

func (s Summarizer) Generate(_ context.Context, trends attendance.Trends, query string) (string, error) {
	if len(trends) == 0 {
		return noData, nil
	}

	totals := make(map[attendance.Status]int64)
	departments := make(map[string]*departmentStats)
	var records int64

	for _, trend := range trends {
		dept, ok := departments[trend.Department]
		if !ok {
			dept = &departmentStats{name: trend.Department, counts: make(map[attendance.Status]int64)}
			departments[trend.Department] = dept
		}
		for status, n := range trend.Attendance {
			totals[status] += n
			dept.counts[status] += n
			dept.total += n
			records += n
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Attendance summary for %d employees across %d departments.\n", len(trends), len(departments))

	parts := make([]string, 0, len(attendance.Statuses))
	for _, status := range attendance.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", status, totals[status]))
	}
	fmt.Fprintf(&b, "Totals: %s (%d records).\n", strings.Join(parts, ", "), records)

	names := make([]string, 0, len(departments))
	for name := range departments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dept := departments[name]
		fmt.Fprintf(&b, "Department %s: %d records, %s.\n", name, dept.total, rates(dept))
	}

	if absentees := s.absentees(trends); len(absentees) > 0 {
		fmt.Fprintf(&b, "Most absences: %s.\n", strings.Join(absentees, ", "))
	}

	if query != "" {
		fmt.Fprintf(&b, "Focus: %s\n", query)
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func rates(dept *departmentStats) string {
	parts := make([]string, 0, len(attendance.Statuses))
	for _, status := range attendance.Statuses {
		pct := 0.0
		if dept.total > 0 {
			pct = float64(dept.counts[status]) * 100 / float64(dept.total)
		}
		parts = append(parts, fmt.Sprintf("%.1f%% %s", pct, status))
	}
	return strings.Join(parts, ", ")
}

func (s Summarizer) absentees(trends attendance.Trends) []string {
	type absentee struct {
		id    int64
		count int64
	}

	var list []absentee
	for id, trend := range trends {
		if n := trend.Attendance[attendance.StatusAbsent]; n > 0 {
			list = append(list, absentee{id: id, count: n})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].id < list[j].id
	})

	limit := s.TopAbsentees
	if limit <= 0 {
		limit = 3
	}
	if len(list) > limit {
		list = list[:limit]
	}

	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, fmt.Sprintf("employee %d (%d)", a.id, a.count))
	}
	return out
}
