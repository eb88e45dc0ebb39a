package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"
)

func TestIsSeleniumErr(t *testing.T) {
	noElement := &selenium.Error{Err: "no such element", Message: "Unable to locate #x", HTTPCode: 404}

	tests := []struct {
		name string
		err  error
		kind string
		want bool
	}{
		{"direct", noElement, "no such element", true},
		{"wrapped by driver", wrap(OpQueryFirst, noElement), "no such element", true},
		{"wrapped by fmt", fmt.Errorf("lookup: %w", noElement), "no such element", true},
		{"other kind", &selenium.Error{Err: "no such cookie"}, "no such element", false},
		{"plain error with same text", errors.New("no such element"), "no such element", false},
		{"nil", nil, "no such element", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSeleniumErr(tt.err, tt.kind))
		})
	}
}

func TestIsAbsentAttr(t *testing.T) {
	// tebeka/selenium reports a null attribute with an unwrapped fmt error.
	null := fmt.Errorf("nil return value")

	assert.True(t, isAbsentAttr(null))
	assert.True(t, isAbsentAttr(wrap(OpAttribute, null)))
	assert.False(t, isAbsentAttr(nil))
	assert.False(t, isAbsentAttr(errors.New("connection refused")))
	assert.False(t, isAbsentAttr(&selenium.Error{Err: "stale element reference", Message: "nil return value"}),
		"server errors are never an absent attribute")
}

func TestCallHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := call(ctx, OpTitle, func() (string, error) {
		<-release
		return "late", nil
	})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, OpTitle, de.Op)

	v, err := call(context.Background(), OpTitle, func() (string, error) { return "Home", nil })
	require.NoError(t, err)
	assert.Equal(t, "Home", v)
}

func TestWebDriverRejectsForeignElement(t *testing.T) {
	ctx := context.Background()
	s := newSite()
	require.NoError(t, s.Navigate(ctx, "https://example.test/a/start"))
	ref, err := s.QueryFirst(ctx, "#go")
	require.NoError(t, err)

	d := &WebDriver{queryTimeout: time.Second}
	_, _, err = d.Attribute(ctx, ref, "name")
	assert.ErrorIs(t, err, ErrForeignElement)
	assert.ErrorIs(t, d.Click(ctx, ref), ErrForeignElement)
	assert.ErrorIs(t, d.WaitUntilEnabled(ctx, ref, time.Millisecond), ErrForeignElement)
}
