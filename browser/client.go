// Package browser is the page client used by the crawler: waiting, querying,
// clicking, forced value setting and switching between tabs.
package browser

import (
	"context"
	"time"
)

// Element is a handle to one node on the current page.
type Element interface {
	Text() (string, error)
	Attribute(name string) (string, error)
	Editable() (bool, error)
	Click() error
	// ClickProgrammatic dispatches a click from script. Only used after Click
	// reported InteractionBlocked.
	ClickProgrammatic() error
	Fill(value string) error
	// ForceSet writes the value from script and fires change and input
	// events. Only used when the input rejects Fill.
	ForceSet(value string) error
	Press(key string) error
	Find(selector string) (Element, error)
	FindAll(selector string) ([]Element, error)
}

// Client operates on the current execution context (tab) of one browser
// session. Handles returned by Contexts and Current are opaque.
type Client interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Back(ctx context.Context) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Find(selector string) (Element, error)
	FindAll(selector string) ([]Element, error)
	Content() (string, error)

	Current() string
	Contexts() ([]string, error)
	SwitchTo(handle string) error
	CloseContext(handle string) error

	// DismissPrompt dismisses a pending modal dialog, reporting whether one
	// was open.
	DismissPrompt() (bool, error)
	Close() error
}

// Launcher acquires a new session.
type Launcher interface {
	Launch(ctx context.Context) (Client, error)
}
