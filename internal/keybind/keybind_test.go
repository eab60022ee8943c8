package keybind

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	tbl, err := Load(filepath.Join(t.TempDir(), "keybindings.json"))
	require.NoError(t, err)
	assert.Equal(t, Table{
		ActionToggleWindow: {Combo: "Ctrl+Alt+V", Enabled: true},
		ActionPasteLast:    {Combo: "Ctrl+Shift+V", Enabled: true},
		ActionClearHistory: {Combo: "Ctrl+Alt+C", Enabled: true},
	}, tbl)
}

func TestLoadMergesMissingBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybindings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "paste_last": "Ctrl+Alt+P",
  "paste_1": {"combo": "Ctrl+Alt+1", "enabled": false}
}`), 0o600))

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ctrl+Alt+P", tbl[ActionPasteLast].Combo)
	assert.Equal(t, "Ctrl+Alt+V", tbl[ActionToggleWindow].Combo)
	assert.Equal(t, Binding{Combo: "Ctrl+Alt+1", Enabled: false}, tbl["paste_1"])
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybindings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"paste_last": 42}`), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateConflict(t *testing.T) {
	tbl := Defaults()
	tbl[ActionClearHistory] = Binding{Combo: "alt+ctrl+v", Enabled: true}

	err := Validate(tbl)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Ctrl+Alt+V", ce.Combo)
	assert.Equal(t, []Action{ActionClearHistory, ActionToggleWindow}, ce.Actions)
}

func TestValidateDisabledNeverConflicts(t *testing.T) {
	tbl := Defaults()
	tbl[ActionClearHistory] = Binding{Combo: "Ctrl+Alt+V", Enabled: false}
	tbl["paste_3"] = Binding{Combo: "", Enabled: false}
	assert.NoError(t, Validate(tbl))
}

func TestValidateInvalidCombo(t *testing.T) {
	tbl := Defaults()
	tbl[ActionPasteLast] = Binding{Combo: "Ctrl+Shift", Enabled: true}

	err := Validate(tbl)
	var ie *InvalidComboError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ActionPasteLast, ie.Action)
	assert.ErrorIs(t, err, errNoKey)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	tbl := Table{
		"Bad Name":   {Combo: "Ctrl+B", Enabled: true},
		"paste_0":    {Combo: "Ctrl+Q+W", Enabled: true},
		"paste_1":    {Combo: "Ctrl+1", Enabled: true},
		"paste_last": {Combo: "ctrl+1", Enabled: true},
	}
	err := Validate(tbl)
	var ae *InvalidActionError
	var ie *InvalidComboError
	var ce *ConflictError
	assert.ErrorAs(t, err, &ae)
	assert.ErrorAs(t, err, &ie)
	assert.ErrorAs(t, err, &ce)
}

func TestSaveConflictLeavesFileUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybindings.json")
	require.NoError(t, Save(path, Defaults()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	bad := Defaults()
	bad[ActionPasteLast] = Binding{Combo: "Ctrl+Alt+C", Enabled: true}
	var ce *ConflictError
	require.ErrorAs(t, Save(path, bad), &ce)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), tbl)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybindings.json")
	tbl := Defaults()
	tbl["paste_2"] = Binding{Combo: "Ctrl+Alt+2", Enabled: true}
	tbl["paste_3"] = Binding{Combo: "Ctrl+Alt+3", Enabled: false}
	require.NoError(t, Save(path, tbl))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "Ctrl+Alt+2", doc["paste_2"], "enabled bindings are plain strings")
	assert.IsType(t, map[string]any{}, doc["paste_3"])

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tbl, got)
}

func TestResolveSkipsDisabled(t *testing.T) {
	tbl := Defaults()
	tbl[ActionToggleWindow] = Binding{Combo: "Ctrl+Alt+V", Enabled: false}
	res, err := tbl.Resolve()
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, ActionClearHistory, res[0].Action)
	assert.Equal(t, "Ctrl+Alt+C", res[0].Combo.String())
	assert.Equal(t, ActionPasteLast, res[1].Action)
}

func TestPasteIndex(t *testing.T) {
	n, ok := Action("paste_4").PasteIndex()
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	_, ok = ActionPasteLast.PasteIndex()
	assert.False(t, ok)
	_, ok = Action("paste_-1").PasteIndex()
	assert.False(t, ok)
	assert.True(t, ActionClearHistory.Builtin())
	assert.False(t, Action("paste_4").Builtin())
}

func TestLoadDisablesDefaultWhoseComboIsTaken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybindings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "paste_1": "alt+ctrl+v",
  "paste_2": {"combo": "Ctrl+Alt+C", "enabled": false}
}`), 0o600))

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Binding{Combo: "Ctrl+Alt+V", Enabled: false}, tbl[ActionToggleWindow])
	assert.Equal(t, Binding{Combo: "Ctrl+Alt+C", Enabled: true}, tbl[ActionClearHistory], "a disabled binding does not take a combo")
	assert.Equal(t, Binding{Combo: "Ctrl+Shift+V", Enabled: true}, tbl[ActionPasteLast])
	assert.NoError(t, Validate(tbl))
}

func TestApply(t *testing.T) {
	tbl := Defaults()

	require.NoError(t, tbl.Apply(Edit{Action: ActionPasteLast, Combo: "shift+ctrl+p"}))
	assert.Equal(t, Binding{Combo: "Ctrl+Shift+P", Enabled: true}, tbl[ActionPasteLast])

	require.NoError(t, tbl.Apply(Edit{Action: ActionToggleWindow, Disable: true}))
	assert.Equal(t, Binding{Combo: "Ctrl+Alt+V", Enabled: false}, tbl[ActionToggleWindow])

	require.NoError(t, tbl.Apply(Edit{Action: "paste_3", Combo: "Ctrl+Alt+3"}))
	assert.True(t, tbl["paste_3"].Enabled)
	require.NoError(t, tbl.Apply(Edit{Action: "paste_3", Remove: true}))
	assert.NotContains(t, tbl, Action("paste_3"))
}

func TestApplyErrors(t *testing.T) {
	tbl := Defaults()

	var invalid *InvalidComboError
	assert.ErrorAs(t, tbl.Apply(Edit{Action: ActionPasteLast, Combo: "Ctrl+Q+W"}), &invalid)
	assert.Error(t, tbl.Apply(Edit{Action: ActionClearHistory, Remove: true}), "built-ins cannot be removed")
	assert.Error(t, tbl.Apply(Edit{Action: "new_action"}), "new actions need a combo")
	assert.Error(t, tbl.Apply(Edit{Action: "missing", Remove: true}))
	assert.Equal(t, Defaults(), tbl, "failed edits leave the table alone")
}
