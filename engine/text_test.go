package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain passthrough", "hello world", "hello world"},
		{"strips tags", "<p>Hi <strong>there</strong></p>", "Hi there"},
		{"line breaks become spaces", "line one<br>line two<br/>line three", "line one line two line three"},
		{"closing blocks separate words", "<p>first</p><p>second</p>", "first second"},
		{"decodes entities", "Fish &amp; Chips &lt;ltd&gt;", "Fish & Chips <ltd>"},
		{"drops unresolved placeholders", "Hi {{first_name}}, welcome to {{company}}!", "Hi , welcome to !"},
		{"collapses whitespace", "too   many\n\n  spaces", "too many spaces"},
		{"empty input", "", ""},
		{
			"full message",
			"<div>Hi {{first_name}},</div><div><br></div><div>Saw your work at <b>Acme</b> &mdash; worth a chat?</div>",
			"Hi , Saw your work at Acme — worth a chat?",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PlainText(tc.in))
		})
	}
}
