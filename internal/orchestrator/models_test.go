package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotPreservesOpaqueFields(t *testing.T) {
	raw := `{
		"@odata.context": "https://host/odata/$metadata#Robots/$entity",
		"Id": 42,
		"LicenseKey": "abc",
		"MachineName": "MACHINE1",
		"Username": "user1",
		"Name": "robot1",
		"Type": "Unattended",
		"Description": null,
		"Password": null,
		"RobotEnvironments": "Prod,Dev",
		"ExecutionSettings": {"LoginToConsole": true}
	}`
	var r Robot
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	assert.Equal(t, int64(42), r.ID)
	assert.Equal(t, "robot1", r.Name)
	assert.Empty(t, r.Description)
	assert.NotContains(t, r.Extra, "@odata.context")
	assert.Contains(t, r.Extra, "ExecutionSettings")

	renamed := r.WithName("robot1-new")
	renamed.Extra["RobotEnvironments"] = json.RawMessage(`"changed"`)
	assert.JSONEq(t, `"Prod,Dev"`, string(r.Extra["RobotEnvironments"]), "WithName copies Extra")

	out, err := json.Marshal(r.WithName("robot1-new"))
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "robot1-new", back["Name"])
	assert.Nil(t, back["Password"])
	assert.Equal(t, map[string]any{"LoginToConsole": true}, back["ExecutionSettings"])
}

func TestEnsurePasswordAddsPlaceholder(t *testing.T) {
	r := Robot{ID: 1, Name: "x"}
	withPwd := r.ensurePassword()
	assert.JSONEq(t, `""`, string(withPwd.Extra[keyPassword]))
	assert.Nil(t, r.Extra)

	r.Extra = map[string]json.RawMessage{keyPassword: json.RawMessage(`null`)}
	assert.JSONEq(t, `null`, string(r.ensurePassword().Extra[keyPassword]))
}

func TestFilters(t *testing.T) {
	assert.Equal(t, "DisplayName eq 'Unit A'", unitFilter("Unit A", MatchExact))
	assert.Equal(t, "contains(DisplayName,'O''Brien')", unitFilter("O'Brien", MatchContains))
	assert.Equal(t, "(Username eq 'dom\\u1' and MachineName eq 'M1')",
		robotFilter(RobotQuery{UserName: `dom\u1`, MachineName: "M1"}))
	assert.Equal(t, "(Name eq 'r1')", robotFilter(RobotQuery{Name: "r1"}))
	assert.Empty(t, robotFilter(RobotQuery{}))

	mode, err := ParseMatchMode("")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, mode)
	mode, err = ParseMatchMode("Contains")
	require.NoError(t, err)
	assert.Equal(t, MatchContains, mode)
	_, err = ParseMatchMode("fuzzy")
	require.Error(t, err)
}

func TestUnauthorizedRetryableOnlyAfterReauth(t *testing.T) {
	err := &StatusError{Method: "GET", Path: "/odata/Robots", StatusCode: 401}
	assert.False(t, IsRetryable(err))
	err.reauth = true
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(&StatusError{StatusCode: 404}))
	assert.True(t, IsRetryable(&StatusError{StatusCode: 429}))
}
