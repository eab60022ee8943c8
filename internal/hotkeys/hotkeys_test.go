package hotkeys_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipkeep/internal/hotkeys"
	"go.klb.dev/clipkeep/internal/hotkeys/hotkeystest"
	"go.klb.dev/clipkeep/internal/keybind"
)

func resolve(t *testing.T, tbl keybind.Table) []keybind.Resolved {
	t.Helper()
	res, err := tbl.Resolve()
	require.NoError(t, err)
	return res
}

func next(t *testing.T, d *hotkeys.Dispatcher) keybind.Action {
	t.Helper()
	select {
	case a := <-d.Events():
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("no hotkey event")
		return ""
	}
}

func TestRegisterDefaults(t *testing.T) {
	f := hotkeystest.NewFake()
	d := hotkeys.New(f)
	defer d.Close()

	rep, err := d.Register(resolve(t, keybind.Defaults()))
	require.NoError(t, err)
	assert.Len(t, rep.Registered, 3)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, []string{"Ctrl+Alt+C", "Ctrl+Alt+V", "Ctrl+Shift+V"}, f.Held())

	require.True(t, f.Press("Ctrl+Shift+V"))
	assert.Equal(t, keybind.ActionPasteLast, next(t, d))
	assert.Equal(t, hotkeys.Registered, d.State(keybind.ActionPasteLast))
}

func TestPartialRegistration(t *testing.T) {
	f := hotkeystest.NewFake()
	f.Occupy("Ctrl+Alt+V")
	d := hotkeys.New(f)
	defer d.Close()

	rep, err := d.Register(resolve(t, keybind.Defaults()))
	require.NoError(t, err, "partial success is not an error")
	assert.Len(t, rep.Registered, 2)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, keybind.ActionToggleWindow, rep.Failed[0].Action)
	assert.ErrorIs(t, rep.Failed[0], hotkeystest.ErrGrabbed)
	assert.Equal(t, hotkeys.Unregistered, d.State(keybind.ActionToggleWindow))

	require.True(t, f.Press("Ctrl+Alt+C"))
	assert.Equal(t, keybind.ActionClearHistory, next(t, d))
	assert.False(t, f.Press("Ctrl+Alt+V"))
}

func TestAllFailed(t *testing.T) {
	f := hotkeystest.NewFake()
	for _, c := range []string{"Ctrl+Alt+V", "Ctrl+Shift+V", "Ctrl+Alt+C"} {
		f.Occupy(c)
	}
	d := hotkeys.New(f)
	defer d.Close()

	rep, err := d.Register(resolve(t, keybind.Defaults()))
	assert.ErrorIs(t, err, hotkeys.ErrAllFailed)
	var re *hotkeys.RegistrationError
	assert.ErrorAs(t, err, &re)
	assert.Len(t, rep.Failed, 3)
}

func TestRegisterEmptyIsNotFailure(t *testing.T) {
	d := hotkeys.New(hotkeystest.NewFake())
	defer d.Close()
	_, err := d.Register(nil)
	assert.NoError(t, err)
}

func TestRegisterIsIdempotent(t *testing.T) {
	f := hotkeystest.NewFake()
	d := hotkeys.New(f)
	defer d.Close()

	bindings := resolve(t, keybind.Defaults())
	_, err := d.Register(bindings)
	require.NoError(t, err)
	rep, err := d.Register(bindings)
	require.NoError(t, err)
	assert.Len(t, rep.Registered, 3)
	assert.Empty(t, rep.Failed)
	assert.Len(t, f.Held(), 3)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	f := hotkeystest.NewFake()
	d := hotkeys.New(f)
	defer d.Close()

	_, err := d.Register(resolve(t, keybind.Defaults()))
	require.NoError(t, err)

	require.NoError(t, d.Unregister(keybind.ActionClearHistory))
	require.NoError(t, d.Unregister(keybind.ActionClearHistory))
	assert.Equal(t, hotkeys.Unregistered, d.State(keybind.ActionClearHistory))
	assert.NotContains(t, f.Held(), "Ctrl+Alt+C")
	assert.Equal(t, []keybind.Action{keybind.ActionPasteLast, keybind.ActionToggleWindow}, d.Registered())
}

func TestReloadSwapsCombinations(t *testing.T) {
	f := hotkeystest.NewFake()
	d := hotkeys.New(f)
	defer d.Close()

	_, err := d.Register(resolve(t, keybind.Defaults()))
	require.NoError(t, err)

	tbl := keybind.Defaults()
	tbl[keybind.ActionPasteLast] = keybind.Binding{Combo: "Ctrl+Alt+P", Enabled: true}
	tbl[keybind.ActionClearHistory] = keybind.Binding{Combo: "Ctrl+Alt+C", Enabled: false}
	rep, err := d.Reload(resolve(t, tbl))
	require.NoError(t, err)
	assert.Len(t, rep.Registered, 2)
	assert.Equal(t, []string{"Ctrl+Alt+P", "Ctrl+Alt+V"}, f.Held())

	assert.False(t, f.Press("Ctrl+Shift+V"))
	require.True(t, f.Press("Ctrl+Alt+P"))
	assert.Equal(t, keybind.ActionPasteLast, next(t, d))
}

func TestCloseIsTerminal(t *testing.T) {
	f := hotkeystest.NewFake()
	d := hotkeys.New(f)

	_, err := d.Register(resolve(t, keybind.Defaults()))
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.Empty(t, f.Held())
	assert.Empty(t, d.Registered())

	_, err = d.Register(resolve(t, keybind.Defaults()))
	assert.ErrorIs(t, err, hotkeys.ErrClosed)
}

func TestFullQueueDropsTrigger(t *testing.T) {
	f := hotkeystest.NewFake()
	d := hotkeys.New(f)
	defer d.Close()

	_, err := d.Register(resolve(t, keybind.Table{
		keybind.ActionPasteLast: {Combo: "Ctrl+Shift+V", Enabled: true},
	}))
	require.NoError(t, err)

	queue := cap(d.Events())
	for range queue + 4 {
		require.True(t, f.Press("Ctrl+Shift+V"))
	}
	assert.Eventually(t, func() bool { return len(d.Events()) == queue }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return d.State(keybind.ActionPasteLast) == hotkeys.Registered }, 2*time.Second, 5*time.Millisecond)
}
