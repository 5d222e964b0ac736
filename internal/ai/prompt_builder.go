package ai

import (
	"encoding/json"
	"strings"
)

// BuildMainTaskPrompt asks for a task that differs from the first active main
// task, or for one feasible within a few days when nothing is active.
func BuildMainTaskPrompt(activeTitles []string) string {
	var b strings.Builder

	b.WriteString("Generate a TODO task that ")
	if len(activeTitles) > 0 {
		quoted, _ := json.Marshal(activeTitles[0])
		b.WriteString("is different from any of ")
		b.Write(quoted)
		b.WriteString(".")
	} else {
		b.WriteString("should be feasible in a few days at this time of the year")
	}
	b.WriteString(" using this JSON schema: ")
	b.WriteString(mainTaskSchema)

	return b.String()
}

func BuildSubtasksPrompt(title string, hasImage bool, existing []string) string {
	var b strings.Builder

	b.WriteString("Break this task down into smaller pieces ")
	if title != "" {
		b.WriteString(`main task "`)
		b.WriteString(title)
		b.WriteString(`" `)
	}
	if hasImage {
		b.WriteString("also consider the image in the input. ")
	}
	if len(existing) > 0 {
		b.WriteString("excluding these existing subtasks ")
		b.WriteString(strings.Join(existing, "\n"))
		b.WriteString(". ")
	}
	b.WriteString("The output should be in the format: ")
	b.WriteString(subtasksSchema)
	b.WriteString(".")

	return b.String()
}
