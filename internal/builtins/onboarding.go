// ABOUTME: Onboarding pack: a three-question yes/no flow that ends in a goal-setting profile.
// ABOUTME: Session progress is persisted so answers survive across stateless requests.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/widget-gateway/internal/store"
	"github.com/2389/widget-gateway/internal/tools"
)

// OnboardingQuestions are asked in order; each answer is yes or no.
var OnboardingQuestions = []string{
	"Do you prefer focusing on daily goals rather than long-term goals?",
	"Do you work better when you have specific deadlines?",
	"Do you prefer tracking multiple goals at the same time?",
}

// Profile is the summary produced after the last answer.
type Profile struct {
	Profile        string `json:"profile"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

type answerKey struct{ daily, deadlines, multi bool }

var profiles = map[answerKey]Profile{
	{true, true, true}: {
		Profile:        "Sprint-focused Achiever",
		Description:    "You thrive with daily deadlines and enjoy juggling multiple concurrent goals. You're energized by short-term wins.",
		Recommendation: "Set 2-3 daily goals with specific deadlines. Use a task board to visualize all active goals and celebrate small wins daily.",
	},
	{true, true, false}: {
		Profile:        "Focused Daily Planner",
		Description:    "You work best tackling one goal at a time with clear daily deadlines. You value deep focus over breadth.",
		Recommendation: "Focus on a single important goal each day with a specific deadline. Complete it before moving to the next.",
	},
	{true, false, true}: {
		Profile:        "Flexible Multi-tasker",
		Description:    "You prefer daily goals but without rigid deadlines. You enjoy variety and flexibility in your approach.",
		Recommendation: "Set 2-3 small daily goals and review progress weekly. Don't stress about exact completion times.",
	},
	{true, false, false}: {
		Profile:        "Day-by-day Achiever",
		Description:    "You prefer a single daily focus with a flexible approach. You value simplicity and taking things one step at a time.",
		Recommendation: "Pick one meaningful goal each morning. Focus on progress, not perfection.",
	},
	{false, true, true}: {
		Profile:        "Strategic Project Manager",
		Description:    "You excel at long-term planning with clear milestones while tracking multiple projects simultaneously.",
		Recommendation: "Create a roadmap with quarterly goals broken into monthly milestones. Use a project tracker for visibility.",
	},
	{false, true, false}: {
		Profile:        "Milestone-driven Achiever",
		Description:    "You focus deeply on a single long-term goal with clear deadlines. You're driven by significant milestones.",
		Recommendation: "Set one major goal with a clear deadline. Break it into weekly milestones and track progress consistently.",
	},
	{false, false, true}: {
		Profile:        "Exploratory Goal-setter",
		Description:    "You prefer flexibility with multiple long-term pursuits. You value exploration and gradual progress.",
		Recommendation: "Maintain 2-3 long-term goals and review monthly. Allow yourself to pivot as interests evolve.",
	},
	{false, false, false}: {
		Profile:        "Deep Focus Achiever",
		Description:    "You work best with one long-term goal and a flexible timeline. You value depth over breadth.",
		Recommendation: "Choose one meaningful long-term goal. Focus on consistent progress without pressure from deadlines.",
	},
}

// SummarizeProfile maps a completed session to its profile.
func SummarizeProfile(sess *store.OnboardingSession) Profile {
	if !sess.Completed || len(sess.Answers) != len(OnboardingQuestions) {
		return Profile{Profile: "Incomplete", Description: "Please complete all questions first."}
	}
	return profiles[answerKey{sess.Answers[0], sess.Answers[1], sess.Answers[2]}]
}

func answerSummary(answers []bool) string {
	if len(answers) != len(OnboardingQuestions) {
		return ""
	}
	daily, deadlines, multi := answers[0], answers[1], answers[2]

	pick := func(cond bool, yes, no string) string {
		if cond {
			return yes
		}
		return no
	}
	lines := []string{
		fmt.Sprintf("- You %s over %s",
			pick(daily, "prefer daily goals", "prefer long-term goals"),
			pick(daily, "long-term planning", "daily tasks")),
		fmt.Sprintf("- You %s strict deadlines", pick(deadlines, "work better with", "work better without")),
		fmt.Sprintf("- You %s", pick(multi, "like tracking multiple goals", "prefer focusing on one goal at a time")),
	}
	return strings.Join(lines, "\n")
}

// OnboardingMeta is the invocation metadata for onboarding tools. They are
// text-only and carry no output template.
func OnboardingMeta() tools.InvocationMeta {
	return tools.InvocationMeta{
		Invoking: "Processing onboarding",
		Invoked:  "Onboarding response ready",
	}
}

// OnboardingPack creates the onboarding tools backed by s.
func OnboardingPack(s store.Store) *tools.Pack {
	o := &onboardingHandlers{store: s}
	return &tools.Pack{
		ID: "builtin:onboarding",
		Tools: []*tools.Tool{
			{
				Descriptor: tools.Descriptor{
					Name:        "start_onboarding",
					Title:       "Start onboarding",
					Description: "Starts the onboarding questionnaire to learn about your goal-setting preferences. After 3 yes/no questions you get a personalized profile.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
					Meta:        OnboardingMeta(),
				},
				Handler: o.Start,
			},
			{
				Descriptor: tools.Descriptor{
					Name:        "answer_onboarding",
					Title:       "Answer onboarding question",
					Description: "Records an answer to the current onboarding question and returns the next question or final summary.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"answer":{"type":"boolean","description":"The user's answer: true for Yes (Y), false for No (N)."},"session_id":{"type":"string","description":"The onboarding session ID from the previous response."}},"required":["answer","session_id"]}`),
					Meta:        OnboardingMeta(),
				},
				Handler: o.Answer,
			},
		},
	}
}

type onboardingHandlers struct {
	store store.Store
}

func sessionMeta(id string) map[string]any {
	return map[string]any{tools.MetaWidgetSessionID: id}
}

func (o *onboardingHandlers) Start(ctx context.Context, _ json.RawMessage) (*tools.Result, error) {
	sess := &store.OnboardingSession{ID: strings.ReplaceAll(uuid.NewString(), "-", "")}
	if err := o.store.CreateOnboardingSession(ctx, sess); err != nil {
		return nil, err
	}

	first := OnboardingQuestions[0]
	text := fmt.Sprintf("Welcome! Let's learn about your goal-setting style.\n\nQuestion 1/%d: %s\n\nPlease answer Y (Yes) or N (No).",
		len(OnboardingQuestions), first)

	return &tools.Result{
		StructuredContent: map[string]any{
			"sessionId":       sess.ID,
			"currentQuestion": 1,
			"totalQuestions":  len(OnboardingQuestions),
			"questionText":    first,
			"completed":       false,
		},
		Text:      text,
		ExtraMeta: sessionMeta(sess.ID),
	}, nil
}

type answerInput struct {
	Answer    bool   `json:"answer"`
	SessionID string `json:"session_id"`
}

func (o *onboardingHandlers) Answer(ctx context.Context, input json.RawMessage) (*tools.Result, error) {
	var in answerInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	sess, err := o.store.GetOnboardingSession(ctx, in.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return &tools.Result{
			StructuredContent: map[string]any{"error": "Session not found"},
			Text:              "Session not found. Please start onboarding again.",
			IsError:           true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if sess.Completed {
		profile := SummarizeProfile(sess)
		return &tools.Result{
			StructuredContent: map[string]any{
				"sessionId": sess.ID,
				"completed": true,
				"profile":   profile,
			},
			Text:      "Onboarding already completed. Your profile: " + profile.Profile,
			ExtraMeta: sessionMeta(sess.ID),
		}, nil
	}

	from := sess.CurrentQuestion
	sess.Answers = append(sess.Answers, in.Answer)
	sess.CurrentQuestion++
	if sess.CurrentQuestion >= len(OnboardingQuestions) {
		sess.Completed = true
	}
	err = o.store.UpdateOnboardingSession(ctx, sess, from)
	if errors.Is(err, store.ErrConflict) {
		return &tools.Result{
			StructuredContent: map[string]any{"sessionId": sess.ID, "error": "Question already answered"},
			Text:              "That question was already answered. Please answer the current question.",
			IsError:           true,
			ExtraMeta:         sessionMeta(sess.ID),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if sess.Completed {
		profile := SummarizeProfile(sess)
		text := fmt.Sprintf("Onboarding complete! Your goal-setting profile: **%s**\n\n%s\n\nBased on your answers:\n%s\n\n**Recommendation:** %s",
			profile.Profile, profile.Description, answerSummary(sess.Answers), profile.Recommendation)
		return &tools.Result{
			StructuredContent: map[string]any{
				"sessionId": sess.ID,
				"completed": true,
				"answers":   sess.Answers,
				"profile":   profile,
			},
			Text:      text,
			ExtraMeta: sessionMeta(sess.ID),
		}, nil
	}

	number := sess.CurrentQuestion + 1
	question := OnboardingQuestions[sess.CurrentQuestion]
	return &tools.Result{
		StructuredContent: map[string]any{
			"sessionId":       sess.ID,
			"currentQuestion": number,
			"totalQuestions":  len(OnboardingQuestions),
			"questionText":    question,
			"completed":       false,
			"answersGiven":    len(sess.Answers),
		},
		Text:      fmt.Sprintf("Question %d/%d: %s\n\nPlease answer Y (Yes) or N (No).", number, len(OnboardingQuestions), question),
		ExtraMeta: sessionMeta(sess.ID),
	}, nil
}
