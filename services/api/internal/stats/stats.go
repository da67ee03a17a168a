// Package stats turns recorded sessions into daily, weekly and yearly focus summaries.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"focusd/pkg/render"
)

const reportTemplate = "weekly_report.tmpl"

// GoalSource resolves a user's daily goal in minutes.
type GoalSource interface {
	DailyGoal(ctx context.Context, userID uint, fallback int) (int, error)
}

type Today struct {
	Minutes  int `json:"minutes"`
	Goal     int `json:"goal"`
	Progress int `json:"progress"`
}

type Day struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

// Summary is today's progress against the goal plus the last seven days, oldest first.
type Summary struct {
	Today  Today `json:"today"`
	Weekly []Day `json:"weekly"`
}

// HeatmapDay is one cell of the yearly heatmap. Count is focus minutes.
type HeatmapDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Options configures the stats service.
type Options struct {
	Store       Store
	Goals       GoalSource
	Renderer    *render.Engine
	Location    *time.Location
	DefaultGoal int
}

type Service struct {
	store       Store
	goals       GoalSource
	renderer    *render.Engine
	loc         *time.Location
	defaultGoal int
	now         func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Goals == nil {
		return nil, errors.New("goal source is required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultGoal <= 0 {
		opts.DefaultGoal = 120
	}
	return &Service{
		store:       opts.Store,
		goals:       opts.Goals,
		renderer:    opts.Renderer,
		loc:         opts.Location,
		defaultGoal: opts.DefaultGoal,
		now:         time.Now,
	}, nil
}

func (s *Service) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Service) totals(ctx context.Context, userID uint, from, to time.Time) (map[string]int64, error) {
	rows, err := s.store.DailyTotals(ctx, userID, from, to, s.loc)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Day] += r.Seconds
	}
	return out, nil
}

// Summary reports today's minutes against the daily goal and the trailing week.
func (s *Service) Summary(ctx context.Context, userID uint) (Summary, error) {
	today := s.today()
	from := today.AddDate(0, 0, -6)
	totals, err := s.totals(ctx, userID, from, today.AddDate(0, 0, 1))
	if err != nil {
		return Summary{}, err
	}
	goal, err := s.goals.DailyGoal(ctx, userID, s.defaultGoal)
	if err != nil {
		return Summary{}, fmt.Errorf("daily goal: %w", err)
	}

	weekly := make([]Day, 0, 7)
	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		weekly = append(weekly, Day{
			Date:    d.Format("01/02"),
			Minutes: int(totals[d.Format(dayLayout)] / 60),
		})
	}

	minutes := int(totals[today.Format(dayLayout)] / 60)
	return Summary{
		Today: Today{
			Minutes:  minutes,
			Goal:     goal,
			Progress: progress(minutes, goal),
		},
		Weekly: weekly,
	}, nil
}

// Heatmap returns daily focus minutes for the past year, ascending, skipping days under a minute.
func (s *Service) Heatmap(ctx context.Context, userID uint) ([]HeatmapDay, error) {
	today := s.today()
	from := today.AddDate(-1, 0, 0)
	totals, err := s.totals(ctx, userID, from, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	out := make([]HeatmapDay, 0, len(totals))
	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		if minutes := int(totals[key] / 60); minutes > 0 {
			out = append(out, HeatmapDay{Date: key, Count: minutes})
		}
	}
	return out, nil
}

type reportData struct {
	Email        string
	Today        time.Time
	TodayMinutes int
	Goal         int
	Progress     int
	Days         []Day
	Peak         int
	TotalMinutes int
	ActiveDays   int
	BestDay      string
}

// Report renders the weekly summary as plain text.
func (s *Service) Report(ctx context.Context, userID uint, email string) (string, error) {
	if s.renderer == nil {
		return "", errors.New("renderer is not configured")
	}
	sum, err := s.Summary(ctx, userID)
	if err != nil {
		return "", err
	}

	data := reportData{
		Email:        email,
		Today:        s.today(),
		TodayMinutes: sum.Today.Minutes,
		Goal:         sum.Today.Goal,
		Progress:     sum.Today.Progress,
		Days:         sum.Weekly,
	}
	for _, d := range sum.Weekly {
		data.TotalMinutes += d.Minutes
		if d.Minutes > 0 {
			data.ActiveDays++
		}
		if d.Minutes > data.Peak {
			data.Peak = d.Minutes
			data.BestDay = d.Date
		}
	}
	return s.renderer.Render(reportTemplate, data)
}

func progress(minutes, goal int) int {
	if goal <= 0 {
		return 0
	}
	p := int(math.Round(float64(minutes) / float64(goal) * 100))
	if p > 100 {
		return 100
	}
	return p
}
