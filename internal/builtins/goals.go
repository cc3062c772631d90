// ABOUTME: Goal pack: set, clear and read the single countdown goal shown by the calendar widget.
// ABOUTME: Domain failures come back as isError results that still carry the current goal.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2389/widget-gateway/internal/assets"
	"github.com/2389/widget-gateway/internal/store"
	"github.com/2389/widget-gateway/internal/tools"
)

// Clock returns the current time. Handlers derive "today" from it.
type Clock func() time.Time

// CalendarMeta is the invocation metadata shared by every goal tool.
func CalendarMeta() tools.InvocationMeta {
	return tools.InvocationMeta{
		OutputTemplate:   assets.CalendarWidgetURI,
		Invoking:         "Preparing widget",
		Invoked:          "Widget rendered",
		WidgetAccessible: true,
	}
}

// GoalsPack creates the goal tools backed by s. A nil clock uses time.Now.
func GoalsPack(s store.Store, clock Clock) *tools.Pack {
	if clock == nil {
		clock = time.Now
	}
	g := &goalHandlers{store: s, clock: clock}
	return &tools.Pack{
		ID: "builtin:goals",
		Tools: []*tools.Tool{
			{
				Descriptor: tools.Descriptor{
					Name:        "set_goal",
					Title:       "Set goal",
					Description: "Sets a goal with a title, optional start date, and target date for countdown tracking.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string","description":"The title/name of the goal to track."},"targetDate":{"type":"string","description":"The target date for the goal in YYYY-MM-DD format."},"startDate":{"type":["string","null"],"description":"Optional start date in YYYY-MM-DD format. Defaults to today."}},"required":["title","targetDate"]}`),
					Meta:        CalendarMeta(),
				},
				Handler: g.SetGoal,
			},
			{
				Descriptor: tools.Descriptor{
					Name:        "clear_goal",
					Title:       "Clear goal",
					Description: "Clears the current goal.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
					Meta:        CalendarMeta(),
				},
				Handler: g.ClearGoal,
			},
			{
				Descriptor: tools.Descriptor{
					Name:        "get_goal",
					Title:       "Show goal",
					Description: "Shows the current goal and how many days remain.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
					Meta:        CalendarMeta(),
				},
				Handler: g.GetGoal,
			},
		},
	}
}

type goalHandlers struct {
	store store.Store
	clock Clock
}

type setGoalInput struct {
	Title      string  `json:"title"`
	TargetDate string  `json:"targetDate"`
	StartDate  *string `json:"startDate"`
}

func (g *goalHandlers) SetGoal(ctx context.Context, input json.RawMessage) (*tools.Result, error) {
	var in setGoalInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return g.errorResult(ctx, "Missing goal title.")
	}
	if in.TargetDate == "" {
		return g.errorResult(ctx, "Missing target date.")
	}

	today := dateOf(g.clock())
	start := today
	if in.StartDate != nil && *in.StartDate != "" {
		parsed, err := time.Parse(store.DateLayout, *in.StartDate)
		if err != nil {
			return g.errorResult(ctx, fmt.Sprintf("Invalid date format: %v", err))
		}
		start = parsed
	}
	target, err := time.Parse(store.DateLayout, in.TargetDate)
	if err != nil {
		return g.errorResult(ctx, fmt.Sprintf("Invalid date format: %v", err))
	}

	if !target.After(start) {
		return g.errorResult(ctx, "Target date must be after start date.")
	}

	goal := &store.Goal{
		ID:         fmt.Sprintf("goal-%d", g.clock().UnixMilli()),
		Title:      title,
		StartDate:  start.Format(store.DateLayout),
		TargetDate: target.Format(store.DateLayout),
	}
	if err := g.store.SetGoal(ctx, goal); err != nil {
		return nil, err
	}

	total := daysBetween(start, target)
	remaining := daysBetween(today, target)
	return &tools.Result{
		StructuredContent: goalContent(goal),
		Text:              fmt.Sprintf("Goal \"%s\" set! %d day journey, %d days remaining.", title, total, remaining),
	}, nil
}

func (g *goalHandlers) ClearGoal(ctx context.Context, _ json.RawMessage) (*tools.Result, error) {
	cleared, err := g.store.ClearGoal(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &tools.Result{StructuredContent: goalContent(nil), Text: "No goal to clear."}, nil
	}
	if err != nil {
		return nil, err
	}
	return &tools.Result{
		StructuredContent: goalContent(nil),
		Text:              fmt.Sprintf("Goal \"%s\" cleared.", cleared.Title),
	}, nil
}

func (g *goalHandlers) GetGoal(ctx context.Context, _ json.RawMessage) (*tools.Result, error) {
	goal, err := g.current(ctx)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return &tools.Result{StructuredContent: goalContent(nil), Text: "No goal set."}, nil
	}

	text := fmt.Sprintf("Goal \"%s\" targets %s.", goal.Title, goal.TargetDate)
	if target, err := time.Parse(store.DateLayout, goal.TargetDate); err == nil {
		text = fmt.Sprintf("Goal \"%s\": %d days remaining until %s.",
			goal.Title, daysBetween(dateOf(g.clock()), target), goal.TargetDate)
	}
	return &tools.Result{StructuredContent: goalContent(goal), Text: text}, nil
}

// errorResult reports a user-facing failure along with the current goal.
func (g *goalHandlers) errorResult(ctx context.Context, message string) (*tools.Result, error) {
	goal, err := g.current(ctx)
	if err != nil {
		return nil, err
	}
	return &tools.Result{
		StructuredContent: goalContent(goal),
		Text:              message,
		IsError:           true,
	}, nil
}

func (g *goalHandlers) current(ctx context.Context) (*store.Goal, error) {
	goal, err := g.store.GetGoal(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return goal, err
}

func goalContent(goal *store.Goal) map[string]any {
	return map[string]any{"goal": goal}
}

// dateOf truncates t to its calendar date, expressed as UTC midnight so it
// compares cleanly with parsed YYYY-MM-DD values.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
