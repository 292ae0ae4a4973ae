package alerts

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"
)

// MessageContext provides the substitution values rule authors can use
// in a message template: the equipment identifier, the value that
// triggered the rule, the configured threshold, and the rule's name.
type MessageContext struct {
	Serial    string
	Value     string
	Threshold string
	RuleName  string
}

// NewMessageContext builds a context from raw evaluation inputs.
func NewMessageContext(rule AlertRule, serial string, value *float64) MessageContext {
	mc := MessageContext{
		Serial:   serial,
		RuleName: rule.Name,
	}
	if value != nil {
		mc.Value = strconv.FormatFloat(*value, 'f', -1, 64)
	}
	if rule.ThresholdValue != nil {
		mc.Threshold = strconv.FormatFloat(*rule.ThresholdValue, 'f', -1, 64)
	}
	return mc
}

// RenderMessage produces the stored alert message. A broken or empty
// template falls back to a generated message rather than failing the
// alert: losing the pretty text is better than losing the alert.
func RenderMessage(rule AlertRule, mc MessageContext) string {
	if rule.MessageTemplate != "" {
		parsed, err := template.New("alert-message").Parse(rule.MessageTemplate)
		if err == nil {
			var buf bytes.Buffer
			if err := parsed.Execute(&buf, mc); err == nil {
				return buf.String()
			}
		}
	}
	return fallbackMessage(rule, mc)
}

func fallbackMessage(rule AlertRule, mc MessageContext) string {
	switch {
	case mc.Value != "" && mc.Threshold != "":
		return fmt.Sprintf("%s on %s: value %s, threshold %s", rule.Name, mc.Serial, mc.Value, mc.Threshold)
	case mc.Value != "":
		return fmt.Sprintf("%s on %s: value %s", rule.Name, mc.Serial, mc.Value)
	default:
		return fmt.Sprintf("%s on %s", rule.Name, mc.Serial)
	}
}
