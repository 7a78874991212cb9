package cli

import (
	"slices"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/forexcell/internal/workflow"
)

// SurveyPrompter asks workflow input steps on the terminal.
type SurveyPrompter struct{}

func (SurveyPrompter) Ask(spec workflow.InputSpec) (string, error) {
	switch spec.Type {
	case "choice":
		prompt := &survey.Select{
			Message: spec.Prompt,
			Options: spec.Choices,
		}
		if slices.Contains(spec.Choices, spec.Default) {
			prompt.Default = spec.Default
		}
		var answer string
		err := survey.AskOne(prompt, &answer)
		return answer, err
	case "boolean", "bool":
		def, _ := workflow.ValidateInput(spec.Default, workflow.InputSpec{Type: "boolean"})
		prompt := &survey.Confirm{Message: spec.Prompt}
		if b, ok := def.(bool); ok {
			prompt.Default = b
		}
		var answer bool
		if err := survey.AskOne(prompt, &answer); err != nil {
			return "", err
		}
		if answer {
			return "yes", nil
		}
		return "no", nil
	}

	var answer string
	prompt := &survey.Input{
		Message: spec.Prompt,
		Default: spec.Default,
		Help:    inputHelp(spec),
	}
	err := survey.AskOne(prompt, &answer, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		if strings.TrimSpace(str) == "" && spec.Default != "" {
			return nil
		}
		_, err := workflow.ValidateInput(str, spec)
		return err
	}))
	return answer, err
}

func inputHelp(spec workflow.InputSpec) string {
	switch spec.Type {
	case "integer", "int":
		return "Enter a whole number"
	case "float", "number":
		return "Enter a number"
	}
	if spec.Required {
		return "A value is required"
	}
	return ""
}
