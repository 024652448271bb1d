package services

import (
	"html/template"
	"time"

	"bikedash/internal/analytics"
	"bikedash/internal/core"
)

const dateLayout = "2006-01-02"

type ChartKind string

const (
	KindBar  ChartKind = "bar"
	KindLine ChartKind = "line"
)

// ChartDef is one fixed section of the dashboard.
type ChartDef struct {
	ID      string
	Kind    ChartKind
	Heading string
	Title   string
	XLabel  string
	YLabel  string
	Insight string
	Dims    []analytics.Dimension
}

// Chart is a rendered section.
type Chart struct {
	ChartDef
	Rows  []analytics.AggregateRow
	Empty bool
	SVG   template.HTML
}

// Page holds the fixed narrative around the charts.
type Page struct {
	Title      string
	Intro      string
	Conclusion string
	Source     string
}

// Options are the values offered by the filter controls.
type Options struct {
	Seasons  []string
	Weathers []string
	MinDate  time.Time
	MaxDate  time.Time
}

// Defaults selects the whole dataset.
func (o Options) Defaults() core.Criteria {
	return core.Criteria{
		Start:    o.MinDate,
		End:      o.MaxDate,
		Seasons:  append([]string{}, o.Seasons...),
		Weathers: append([]string{}, o.Weathers...),
	}
}

// Dashboard is the output of one render pass.
type Dashboard struct {
	Page
	Criteria     core.Criteria
	Options      Options
	TotalRows    int
	FilteredRows int
	Charts       []Chart
	GeneratedAt  time.Time
}

func DefaultPage() Page {
	return Page{
		Title: "Bike Sharing Dashboard",
		Intro: "This dashboard analyses bike rentals by weather condition and season.",
		Conclusion: "Weather and season both have a significant effect on the number of bike rentals. " +
			"Use the filters to explore the data for any period, season or weather condition.",
		Source: "Data source: Bike Sharing Dataset (day.csv)",
	}
}

// Layout returns the chart sections in display order.
func Layout() []ChartDef {
	return []ChartDef{
		{
			ID:      "weather",
			Kind:    KindBar,
			Heading: "Effect of weather on rentals",
			Title:   "Average bike rentals by weather",
			XLabel:  "Weather",
			YLabel:  "Average rentals",
			Insight: "Average rentals peak on clear days, followed by misty or lightly overcast days. " +
				"Light rain brings a marked drop in rentals, so weather strongly affects riders.",
			Dims: []analytics.Dimension{analytics.DimWeather},
		},
		{
			ID:      "season",
			Kind:    KindBar,
			Heading: "Rental patterns by season",
			Title:   "Average bike rentals by season",
			XLabel:  "Season",
			YLabel:  "Average rentals",
			Insight: "Rentals rise in summer and fall while spring has the lowest average. " +
				"Warmer and more stable conditions encourage cycling.",
			Dims: []analytics.Dimension{analytics.DimSeason},
		},
		{
			ID:      "monthly",
			Kind:    KindLine,
			Heading: "Monthly trend",
			Title:   "Average daily rentals per month",
			XLabel:  "Month",
			YLabel:  "Average rentals",
			Insight: "Monthly averages trace the seasonal cycle of demand over the selected period.",
			Dims:    []analytics.Dimension{analytics.DimMonth},
		},
		{
			ID:      "monthly-season",
			Kind:    KindLine,
			Heading: "Monthly trend by season",
			Title:   "Average daily rentals per month and season",
			XLabel:  "Month",
			YLabel:  "Average rentals",
			Insight: "Each line follows one season through the months it covers.",
			Dims:    []analytics.Dimension{analytics.DimMonth, analytics.DimSeason},
		},
		{
			ID:      "monthly-weather",
			Kind:    KindLine,
			Heading: "Monthly trend by weather",
			Title:   "Average daily rentals per month and weather",
			XLabel:  "Month",
			YLabel:  "Average rentals",
			Insight: "Clear days stay above misty and rainy days in most months.",
			Dims:    []analytics.Dimension{analytics.DimMonth, analytics.DimWeather},
		},
	}
}
