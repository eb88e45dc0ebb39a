package export

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/portalshot/artifact"
)

const gradesPage = `<html><head><title>Student Home</title></head><body>
<nav>Menu Logout</nav>
<main id="main">
<h2>Grades</h2>
<table><tr><th>Course</th><th>Mark</th></tr><tr><td>Math</td><td>A</td></tr></table>
<a href="/p/report">report</a>
</main>
</body></html>`

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestContentRoot(t *testing.T) {
	out, err := ContentRoot(gradesPage, "#main")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `<main id="main">`))
	assert.NotContains(t, out, "Menu")

	out, err = ContentRoot(gradesPage, "#absent")
	require.NoError(t, err)
	assert.Equal(t, gradesPage, out)

	_, err = ContentRoot(gradesPage, "[[")
	assert.Error(t, err)
}

func TestMarkdownWithSelector(t *testing.T) {
	a, err := artifact.New("https://portal.test/p/District/42", "Student Home", gradesPage, nil)
	require.NoError(t, err)

	md, err := New("#main", quiet()).Markdown(a)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# Student Home\n\n"), md)
	assert.Contains(t, md, "Grades")
	assert.Contains(t, md, "Math")
	assert.Contains(t, md, "|")
	assert.Contains(t, md, "(https://portal.test/p/report)")
	assert.NotContains(t, md, "Menu")
	assert.True(t, strings.HasSuffix(md, "\n"))
}

func TestMarkdownInvalidSelector(t *testing.T) {
	a, err := artifact.New("https://portal.test/", "", gradesPage, nil)
	require.NoError(t, err)

	_, err = New("[[", quiet()).Markdown(a)
	assert.Error(t, err)
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://portal.test", origin("https://portal.test/p/District/1?x=y"))
	assert.Equal(t, "", origin("not a url"))
}
