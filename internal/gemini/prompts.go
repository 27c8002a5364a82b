package gemini

import (
	"fmt"
	"strings"

	"github.com/edgard/habitbot/internal/database"
)

// ReminderPromptTemplate is the user prompt for a reminder note.
// Parameters: habit name, planned duration in days, the owner's description.
const ReminderPromptTemplate = `Write one short sentence (at most 25 words) encouraging me to do my habit right now.

Habit: %s
Planned duration: %s days
My description: %s

Reply with the sentence only.`

// BuildReminderPrompt fills ReminderPromptTemplate for habit. Newlines in user
// text are flattened so they cannot add lines to the prompt.
func BuildReminderPrompt(habit *database.Habit) string {
	comments := flatten(habit.Comments)
	if comments == "" {
		comments = "(none)"
	}
	return fmt.Sprintf(ReminderPromptTemplate, flatten(habit.HabitName), flatten(habit.Duration), comments)
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
