package steps

import (
	"fmt"
	"strings"
)

func repositoryPrompt(listing string) string {
	var sb strings.Builder
	sb.WriteString("You are analyzing the structure of a source repository.\n\n")
	sb.WriteString("File listing:\n")
	sb.WriteString(listing)
	sb.WriteString("\n\nClassify the repository layout and its packages. Respond with only a JSON object of the form:\n")
	sb.WriteString(`{"type": "monorepo|single-package|multi-project", "structure": {"packages": [{"name": "...", "type": "app|library|tool|config|unknown", "path": "..."}]}, "hasWorkspaceConfig": true, "confidence": 0.0}`)
	sb.WriteString("\nUse exactly these enum spellings.\n")
	return sb.String()
}

func codebasePrompt(listing string) string {
	var sb strings.Builder
	sb.WriteString("You are assessing the quality of a codebase.\n\n")
	sb.WriteString("File listing:\n")
	sb.WriteString(listing)
	sb.WriteString("\n\nAssess languages, complexity, maturity, maintainability, documentation, and tests. Respond with only a JSON object of the form:\n")
	sb.WriteString(`{"languages": ["..."], "complexity": "simple|moderate|complex|very-complex", "maturity": "prototype|development|production|mature", "maintainability": "excellent|good|fair|poor", "documentation": {"hasReadme": true, "hasApiDocs": false, "hasExamples": false, "commentsLevel": "extensive|moderate|minimal|none"}, "hasTests": true, "confidence": 0.0}`)
	sb.WriteString("\nUse exactly these enum spellings.\n")
	return sb.String()
}

func buildPrompt(listing string) string {
	var sb strings.Builder
	sb.WriteString("You are assessing how a repository is built and deployed.\n\n")
	sb.WriteString("File listing:\n")
	sb.WriteString(listing)
	sb.WriteString("\n\nIdentify build tooling, CI, containerization, and deployment targets. Respond with only a JSON object of the form:\n")
	sb.WriteString(`{"buildTools": ["..."], "hasCI": true, "hasDockerfile": false, "hasLockfile": true, "deployTargets": ["..."], "complexity": "simple|moderate|complex|very-complex", "confidence": 0.0}`)
	sb.WriteString("\nUse exactly these enum spellings.\n")
	return sb.String()
}

func synthesizePrompt(repoDoc, codeDoc, buildDoc string) string {
	var sb strings.Builder
	sb.WriteString("Combine the following analysis documents into a concise onboarding summary in Markdown. Cover layout, quality, and build/deploy in that order.\n\n")
	sb.WriteString("Repository structure:\n")
	sb.WriteString(repoDoc)
	sb.WriteString("\n\nCodebase quality:\n")
	sb.WriteString(codeDoc)
	sb.WriteString("\n\nBuild and deployment:\n")
	sb.WriteString(buildDoc)
	sb.WriteString("\n")
	return sb.String()
}

// repairHint is appended to the prompt on re-attempts after a response
// could not be turned into a valid document.
func repairHint(err error) string {
	var sb strings.Builder
	sb.WriteString("\n\nThe previous response could not be used:\n")
	sb.WriteString(fmt.Sprintf("- %v\n", err))
	sb.WriteString("Respond again with only the JSON object, no prose, no code fences, using exactly the enum spellings given above.\n")
	return sb.String()
}
