package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"timeout", fmt.Errorf("locator.waitFor: %w", playwright.ErrTimeout), KindTimeout},
		{"target closed", fmt.Errorf("page.goto: %w", playwright.ErrTargetClosed), KindSessionFatal},
		{"browser gone", errors.New("Browser has been closed"), KindSessionFatal},
		{"intercepted", fmt.Errorf("<div class=overlay> intercepts pointer events: %w", playwright.ErrTimeout), KindInteractionBlocked},
		{"readonly", errors.New("Element is not editable"), KindInteractionBlocked},
		{"dialog", errors.New("cannot act while a dialog is open"), KindUnexpectedPrompt},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("op", "#sel", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, Classify("op", "", nil))
}

func TestClassify_KeepsExistingKind(t *testing.T) {
	orig := NotFound("find", "#x")
	err := Classify("wrap", "", orig)
	assert.Same(t, orig, err)
	assert.Equal(t, KindElementNotFound, KindOf(err))
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("row 3: %w", NewError(KindSessionFatal, "click", "i.fa", nil))
	assert.True(t, IsFatal(err))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, "session_fatal", KindSessionFatal.String())
}

func TestErrorMessage(t *testing.T) {
	err := NewError(KindTimeout, "wait", "table#approvedTable", errors.New("20s elapsed"))
	assert.Equal(t, "wait table#approvedTable: timeout: 20s elapsed", err.Error())
}
