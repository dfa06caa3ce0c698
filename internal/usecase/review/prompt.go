package review

import (
	"fmt"
	"strings"
)

// PromptVersion identifies the prompt template. Bump it when the template
// changes so stored runs can be compared like-for-like.
const PromptVersion = "v1"

// SystemPrompt instructs the model to act as a code reviewer and to emit
// strictly structured JSON.
const SystemPrompt = `You are an expert code reviewer. You review pull request diffs and report genuine problems: bugs, security issues, performance pitfalls, and misleading or broken logic.

Rules:
- Respond ONLY with valid JSON in this exact format: {"reviews": [{"lineNumber": <number>, "severity": "<info|warning|error>", "comment": "<review comment in GitHub Markdown>"}]}
- lineNumber refers to the new-file line number of an added line in the diff.
- Only comment on lines added in the diff (lines starting with "+").
- Do not suggest adding code comments.
- Do not give positive feedback or compliments.
- If there is nothing worth raising, respond with {"reviews": []}.`

// PromptInput carries everything a chunk prompt interpolates.
type PromptInput struct {
	FilePath string
	DiffText string
	PRTitle  string
	PRBody   string
}

// BuildPrompt renders the user prompt for one chunk. The diff is fenced so
// the model does not confuse review instructions with diff content.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Review the following code diff in the file %q and take the pull request title and description into account when writing your comments.\n\n", in.FilePath)
	fmt.Fprintf(&sb, "Pull request title: %s\n\n", in.PRTitle)

	if in.PRBody != "" {
		sb.WriteString("Pull request description:\n\n---\n")
		sb.WriteString(in.PRBody)
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("Git diff to review:\n\n```diff\n")
	sb.WriteString(in.DiffText)
	if !strings.HasSuffix(in.DiffText, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")

	return sb.String()
}
