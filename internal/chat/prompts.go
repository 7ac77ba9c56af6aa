package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
)

const timestampLayout = "2006-01-02 15:04:05 MST"

// systemPrompt seeds every exchange with the current time and the tools the
// model may call.
func systemPrompt(now time.Time, defs []llm.ToolDefinition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current date and time: %s\n\n", now.Format(timestampLayout))
	if len(defs) == 0 {
		sb.WriteString("You are a helpful assistant. Answer the user directly.")
		return sb.String()
	}
	sb.WriteString("You are a helpful assistant with access to the following tools:\n")
	for _, d := range defs {
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
	}
	sb.WriteString("\nCall a tool when it helps you answer, then answer the user with what you found.")
	return sb.String()
}

// imageContext is the system turn carrying the description of an image
// referenced in the prompt.
func imageContext(url, description string) string {
	return fmt.Sprintf("Description of the image at %s:\n%s", url, description)
}

const turnCapNotice = "You have used all available tool turns. Answer the user now with the information gathered so far."

// turnCapFallback is the answer when the model still replies with tool calls
// only after the turn cap and has said nothing earlier.
const turnCapFallback = "I ran out of tool turns before I could finish an answer."

// gradingPrompt asks the model to grade one answer.
func gradingPrompt(userPrompt, answer string) string {
	return "You are a helpful assistant that can grade the response of a user.\n" +
		"You will be given a response and will grade it based on the criteria provided.\n" +
		"You will need to grade the response based on what you think the user is looking for.\n" +
		"You will need to return a grade and a explanation for the grade.\n" +
		"### user prompt: " + userPrompt + "\n" +
		"### assistant response: " + answer
}

// feedbackMessage instructs the model to revise answer in light of grade.
func feedbackMessage(grade, answer string) string {
	return fmt.Sprintf("Grade: %s \n\n this is the response: %s that got this grade. adjust the response to improve the grade.", grade, answer)
}

func errorAnswer(err error) string {
	return fmt.Sprintf("An error occurred: %v", err)
}
