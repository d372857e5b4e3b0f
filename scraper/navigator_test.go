package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rera_crawler/browser"
)

func TestNavigatorOpenAndSearch(t *testing.T) {
	site := newSimSite()
	site.results["PRM/KA/1"] = []simRow{{regNo: "PRM/KA/1"}}
	client, err := site.Launch(context.Background())
	require.NoError(t, err)

	nav := NewNavigator(client, site.reg, testTimeouts)
	require.True(t, nav.Open(context.Background(), "Bengaluru Urban").IsOK())
	assert.Equal(t, StateFiltered, nav.State())

	require.True(t, nav.Search(context.Background(), "PRM/KA/1").IsOK())
	assert.Equal(t, StateListing, nav.State())
	assert.Equal(t, []string{"PRM/KA/1"}, site.searches)
}

func TestNavigatorFilterTimeoutFailsSession(t *testing.T) {
	site := newSimSite()
	site.failFilter = true
	client, err := site.Launch(context.Background())
	require.NoError(t, err)

	nav := NewNavigator(client, site.reg, testTimeouts)
	out := nav.Open(context.Background(), "Bengaluru Urban")

	assert.Equal(t, StatusRecoverable, out.Status)
	assert.Equal(t, browser.KindTimeout, out.Kind)
	assert.Equal(t, StateFailed, nav.State())
}

func TestNavigatorSearchTimeoutFailsTerm(t *testing.T) {
	site := newSimSite()
	site.failSearch["BAD"] = true
	client, err := site.Launch(context.Background())
	require.NoError(t, err)

	nav := NewNavigator(client, site.reg, testTimeouts)
	require.True(t, nav.Open(context.Background(), "Bengaluru Urban").IsOK())

	out := nav.Search(context.Background(), "BAD")
	assert.Equal(t, StatusRecoverable, out.Status)
	assert.Equal(t, StateFailed, nav.State())

	require.True(t, nav.Reset(context.Background(), "Bengaluru Urban").IsOK())
	assert.Equal(t, StateFiltered, nav.State())
}

func TestSetValueFallsBackToForceSet(t *testing.T) {
	readonly := &simElement{}
	require.NoError(t, setValue(readonly, "Bengaluru Urban"))
	assert.Equal(t, "Bengaluru Urban", readonly.value)

	editable := &simElement{editable: true}
	require.NoError(t, setValue(editable, "PRM/KA/1"))
	assert.Equal(t, "PRM/KA/1", editable.value)
}

func TestWithPromptRetriesOnce(t *testing.T) {
	site := newSimSite()
	client, err := site.Launch(context.Background())
	require.NoError(t, err)
	page := client.(*simPage)
	nav := NewNavigator(client, site.reg, testTimeouts)

	calls := 0
	err = nav.withPrompt(func() error {
		calls++
		if calls == 1 {
			page.prompt = true
			return browser.NewError(browser.KindUnexpectedPrompt, "click", "", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// Nothing to dismiss: the prompt error stands.
	err = nav.withPrompt(func() error {
		return browser.NewError(browser.KindUnexpectedPrompt, "click", "", nil)
	})
	assert.Equal(t, browser.KindUnexpectedPrompt, browser.KindOf(err))
}

func TestNavigatorSearchDismissesDialog(t *testing.T) {
	site := newSimSite()
	site.results["PRM/KA/1"] = []simRow{{regNo: "PRM/KA/1"}}
	site.promptOnSearch["PRM/KA/1"] = true
	client, err := site.Launch(context.Background())
	require.NoError(t, err)
	page := client.(*simPage)

	nav := NewNavigator(client, site.reg, testTimeouts)
	require.True(t, nav.Open(context.Background(), "Bengaluru Urban").IsOK())

	out := nav.Search(context.Background(), "PRM/KA/1")
	require.True(t, out.IsOK(), out.String())
	assert.Equal(t, StateListing, nav.State())
	assert.False(t, page.prompt)
	assert.Equal(t, 1, site.dismissals)
}

func TestNavigatorSearchClearsLeftoverDialog(t *testing.T) {
	site := newSimSite()
	site.results["PRM/KA/1"] = []simRow{{regNo: "PRM/KA/1"}}
	client, err := site.Launch(context.Background())
	require.NoError(t, err)
	page := client.(*simPage)

	nav := NewNavigator(client, site.reg, testTimeouts)
	require.True(t, nav.Open(context.Background(), "Bengaluru Urban").IsOK())

	// A dialog opened while the session sat idle blocks every page call.
	page.prompt = true
	require.True(t, nav.Search(context.Background(), "PRM/KA/1").IsOK())
	assert.Equal(t, []string{"PRM/KA/1"}, site.searches)
	assert.Equal(t, 1, site.dismissals)
}

func TestNavigatorResetReloads(t *testing.T) {
	site := newSimSite()
	client, err := site.Launch(context.Background())
	require.NoError(t, err)

	nav := NewNavigator(client, site.reg, testTimeouts)
	require.True(t, nav.Open(context.Background(), "Bengaluru Urban").IsOK())
	require.True(t, nav.Reset(context.Background(), "Bengaluru Urban").IsOK())
	assert.Equal(t, StateFiltered, nav.State())
	assert.Equal(t, 1, site.navigations)
	assert.Equal(t, 1, site.reloads)

	site.failReload = true
	require.True(t, nav.Reset(context.Background(), "Bengaluru Urban").IsOK())
	assert.Equal(t, 2, site.navigations, "a failed reload reopens the registry")
}

func TestNavigatorResetSessionLossIsFatal(t *testing.T) {
	site := newSimSite()
	client, err := site.Launch(context.Background())
	require.NoError(t, err)
	page := client.(*simPage)

	nav := NewNavigator(client, site.reg, testTimeouts)
	require.True(t, nav.Open(context.Background(), "Bengaluru Urban").IsOK())

	page.lost = true
	out := nav.Reset(context.Background(), "Bengaluru Urban")
	assert.True(t, out.IsFatal())
	assert.Equal(t, StateFailed, nav.State())
}
