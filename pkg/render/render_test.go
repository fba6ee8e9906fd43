package render_test

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulebook/pkg/render"
)

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		opts  []render.Opt
		input string
		want  string
	}{
		"plain markdown": {
			opts:  []render.Opt{render.WithProfile(termenv.Ascii)},
			input: "# AWS\n\nUse IAM roles.\n",
			want:  "# AWS\n\nUse IAM roles.\n",
		},
		"missing trailing newline": {
			opts:  []render.Opt{render.WithProfile(termenv.Ascii)},
			input: "one\ntwo",
			want:  "one\ntwo\n",
		},
		"unknown language": {
			opts:  []render.Opt{render.WithProfile(termenv.Ascii), render.WithLanguage("no-such-lexer")},
			input: "text",
			want:  "text\n",
		},
		"diff": {
			opts:  []render.Opt{render.WithProfile(termenv.Ascii), render.WithLanguage("diff")},
			input: "--- a\n+++ b\n-x\n+y\n",
			want:  "--- a\n+++ b\n-x\n+y\n",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := render.New(tc.opts...).Render(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRenderer_LineNumbers(t *testing.T) {
	t.Parallel()

	r := render.New(render.WithProfile(termenv.Ascii), render.WithLineNumbers(true))

	got, err := r.Render("a\nb\n")
	require.NoError(t, err)
	assert.Contains(t, got, "   1  ")
	assert.Contains(t, got, "   2  ")
	assert.Contains(t, got, "b\n")
}

func TestRenderer_Color(t *testing.T) {
	t.Parallel()

	r := render.New(render.WithProfile(termenv.TrueColor))

	got, err := r.Render("# Title\n")
	require.NoError(t, err)
	assert.Contains(t, got, "\x1b[")
	assert.Contains(t, got, "Title")
}
