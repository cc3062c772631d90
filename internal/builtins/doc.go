// Package builtins provides the tool packs that ship with the gateway.
//
// # Tool Packs
//
// Goals Pack (builtin:goals), rendered by the calendar widget:
//
//   - set_goal: Set the countdown goal (title, targetDate, optional startDate)
//   - clear_goal: Remove the current goal
//   - get_goal: Show the current goal and days remaining
//
// Onboarding Pack (builtin:onboarding), text only:
//
//   - start_onboarding: Begin the three-question questionnaire
//   - answer_onboarding: Record a yes/no answer for a session
//
// # Results
//
// Goal tools always return {"goal": ...} as structured content, including
// when the request is rejected; a rejection sets IsError so the host shows
// the message while the widget keeps rendering the current goal.
//
// Onboarding results carry the session ID in the openai/widgetSessionId
// meta key so the host can correlate follow-up answers.
package builtins
