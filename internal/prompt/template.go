package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// DefaultTranslationTemplate asks for the bare translation with no
// commentary around it.
const DefaultTranslationTemplate = `You are a professional translator. Translate the following {{source}} text into {{target}}. ` +
	`Return only the {{target}} translation. Do not include explanations, preambles, closing remarks, or any other conversational content.

{{source}} text:
{{text}}`

// Render replaces {{variable}} placeholders in the template with values from vars.
func Render(template string, vars map[string]string) (string, error) {
	if missing := findMissingVars(template, vars); len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		return vars[match[2:len(match)-2]]
	}), nil
}

// Translation renders a translation prompt. An empty template selects
// DefaultTranslationTemplate.
func Translation(template, source, target, text string) (string, error) {
	if template == "" {
		template = DefaultTranslationTemplate
	}
	return Render(template, map[string]string{
		"source": source,
		"target": target,
		"text":   text,
	})
}

// ExtractVariables returns a list of variable names found in the template.
func ExtractVariables(template string) []string {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

// Validate reports templates that reference variables a translation prompt
// cannot fill.
func Validate(template string) error {
	var unknown []string
	for _, v := range ExtractVariables(template) {
		switch v {
		case "source", "target", "text":
		default:
			unknown = append(unknown, v)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown template variables: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func findMissingVars(template string, vars map[string]string) []string {
	var missing []string
	for _, v := range ExtractVariables(template) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
