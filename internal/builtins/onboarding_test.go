// ABOUTME: Tests for the onboarding questionnaire tools.
// ABOUTME: Walks full sessions through every profile and checks session metadata.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/widget-gateway/internal/store"
	"github.com/2389/widget-gateway/internal/tools"
)

func newOnboardingRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(nil)
	require.NoError(t, r.RegisterPack(OnboardingPack(newTestStore(t))))
	return r
}

func startSession(t *testing.T, r *tools.Registry) string {
	t.Helper()
	res := call(t, r, "start_onboarding", `{}`)
	content := res.StructuredContent.(map[string]any)
	id, ok := content["sessionId"].(string)
	require.True(t, ok)
	return id
}

func answer(t *testing.T, r *tools.Registry, id string, yes bool) *tools.Result {
	t.Helper()
	return call(t, r, "answer_onboarding", fmt.Sprintf(`{"answer": %t, "session_id": %q}`, yes, id))
}

func TestStartOnboarding(t *testing.T) {
	r := newOnboardingRegistry(t)

	res := call(t, r, "start_onboarding", `{}`)
	content := res.StructuredContent.(map[string]any)

	id := content["sessionId"].(string)
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
	assert.Equal(t, 1, content["currentQuestion"])
	assert.Equal(t, 3, content["totalQuestions"])
	assert.Equal(t, OnboardingQuestions[0], content["questionText"])
	assert.Equal(t, false, content["completed"])
	assert.True(t, strings.HasPrefix(res.Text, "Welcome! Let's learn about your goal-setting style.\n\nQuestion 1/3: "))

	meta := res.MetaMap()
	assert.Equal(t, id, meta[tools.MetaWidgetSessionID])
	assert.Equal(t, "Processing onboarding", meta[tools.MetaInvoking])
	assert.Equal(t, "Onboarding response ready", meta[tools.MetaInvoked])
	assert.False(t, res.Renderable())
}

func TestAnswerOnboardingFlow(t *testing.T) {
	r := newOnboardingRegistry(t)
	id := startSession(t, r)

	res := answer(t, r, id, true)
	content := res.StructuredContent.(map[string]any)
	assert.Equal(t, 2, content["currentQuestion"])
	assert.Equal(t, 1, content["answersGiven"])
	assert.Equal(t, OnboardingQuestions[1], content["questionText"])
	assert.Equal(t, fmt.Sprintf("Question 2/3: %s\n\nPlease answer Y (Yes) or N (No).", OnboardingQuestions[1]), res.Text)

	answer(t, r, id, false)
	res = answer(t, r, id, true)
	content = res.StructuredContent.(map[string]any)
	assert.Equal(t, true, content["completed"])
	assert.Equal(t, []bool{true, false, true}, content["answers"])

	profile := content["profile"].(Profile)
	assert.Equal(t, "Flexible Multi-tasker", profile.Profile)
	assert.Contains(t, res.Text, "Onboarding complete! Your goal-setting profile: **Flexible Multi-tasker**")
	assert.Contains(t, res.Text, "- You prefer daily goals over long-term planning\n- You work better without strict deadlines\n- You like tracking multiple goals")
	assert.Contains(t, res.Text, "**Recommendation:** "+profile.Recommendation)

	res = answer(t, r, id, false)
	assert.Equal(t, "Onboarding already completed. Your profile: Flexible Multi-tasker", res.Text)
	assert.False(t, res.IsError)
}

func TestAnswerOnboardingUnknownSession(t *testing.T) {
	r := newOnboardingRegistry(t)

	res := answer(t, r, "does-not-exist", true)
	assert.True(t, res.IsError)
	assert.Equal(t, "Session not found. Please start onboarding again.", res.Text)
	assert.Equal(t, map[string]any{"error": "Session not found"}, res.StructuredContent)
	assert.NotContains(t, res.MetaMap(), tools.MetaWidgetSessionID)
}

// staleReads serves a fixed snapshot of a session, as a request that read
// it before a concurrent answer landed would see it.
type staleReads struct {
	store.Store
	snapshot *store.OnboardingSession
}

func (s *staleReads) GetOnboardingSession(context.Context, string) (*store.OnboardingSession, error) {
	c := *s.snapshot
	c.Answers = append([]bool(nil), s.snapshot.Answers...)
	return &c, nil
}

func TestAnswerOnboardingConcurrentAnswerLoses(t *testing.T) {
	ctx := context.Background()
	backing := newTestStore(t)
	r := tools.NewRegistry(nil)
	require.NoError(t, r.RegisterPack(OnboardingPack(backing)))
	id := startSession(t, r)

	snapshot, err := backing.GetOnboardingSession(ctx, id)
	require.NoError(t, err)
	answer(t, r, id, true)

	late := tools.NewRegistry(nil)
	require.NoError(t, late.RegisterPack(OnboardingPack(&staleReads{Store: backing, snapshot: snapshot})))
	res := answer(t, late, id, false)
	assert.True(t, res.IsError)
	assert.Equal(t, "That question was already answered. Please answer the current question.", res.Text)

	sess, err := backing.GetOnboardingSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, sess.Answers)
	assert.Equal(t, 1, sess.CurrentQuestion)
}

func TestAnswerOnboardingRequiresArgs(t *testing.T) {
	r := newOnboardingRegistry(t)
	_, err := r.Invoke(context.Background(), "answer_onboarding", json.RawMessage(`{"answer": "yes", "session_id": "x"}`))
	assert.ErrorIs(t, err, tools.ErrSchemaValidation)
}

func TestEveryAnswerCombinationHasAProfile(t *testing.T) {
	seen := map[string]bool{}
	for mask := range 8 {
		sess := &store.OnboardingSession{
			Completed: true,
			Answers:   []bool{mask&4 != 0, mask&2 != 0, mask&1 != 0},
		}
		p := SummarizeProfile(sess)
		assert.NotEmpty(t, p.Profile)
		assert.NotEmpty(t, p.Recommendation)
		seen[p.Profile] = true
	}
	assert.Len(t, seen, 8)

	incomplete := SummarizeProfile(&store.OnboardingSession{Answers: []bool{true}})
	assert.Equal(t, "Incomplete", incomplete.Profile)
}
