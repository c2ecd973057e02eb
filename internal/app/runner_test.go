package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"robotrenamer/internal/orchestrator"
	"robotrenamer/internal/orchestrator/orchestratortest"
	"robotrenamer/internal/records"
	"robotrenamer/internal/renamer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	runIDs  []string
	results []renamer.Result
}

func (m *memSink) Record(runID string, res renamer.Result) {
	m.runIDs = append(m.runIDs, runID)
	m.results = append(m.results, res)
}

func (m *memSink) outcomes() []string {
	out := make([]string, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r.Outcome())
	}
	return out
}

const header = "Unit,OldName,Enabled,Machine,User,NewName\n"

func writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robots.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+strings.Join(rows, "\n")+"\n"), 0o600))
	return path
}

func robot(id int64, name, user, machine string) orchestrator.Robot {
	return orchestrator.Robot{
		ID:          id,
		LicenseKey:  "lic",
		MachineName: machine,
		Username:    user,
		Name:        name,
		Type:        "Unattended",
		Extra:       map[string]json.RawMessage{"Password": json.RawMessage(`""`)},
	}
}

func newServer(t *testing.T) *orchestratortest.Server {
	t.Helper()
	srv := orchestratortest.NewServer(
		[]orchestrator.OrganizationUnit{
			{ID: 7, DisplayName: "UnitA"},
			{ID: 11, DisplayName: "UnitDup"},
			{ID: 12, DisplayName: "UnitDup"},
		},
		[]orchestratortest.Robot{
			{UnitID: 7, Robot: robot(42, "robot1", "user1", "MACHINE1")},
			{UnitID: 7, Robot: robot(43, "robot2", "user2", "MACHINE2")},
		},
	)
	t.Cleanup(srv.Close)
	return srv
}

func newRunner(t *testing.T, srv *orchestratortest.Server, csvPath string, prod bool) (*Runner, *memSink) {
	t.Helper()
	cfg := Config{Prod: prod}
	cfg.Orchestrator.Server = strings.TrimPrefix(srv.URL, "http://")
	cfg.Orchestrator.Token = orchestratortest.Token
	cfg.CSV.File = csvPath
	cfg.CSV.Count = records.All
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	client, err := orchestrator.NewHTTPClient(orchestrator.HTTPConfig{
		BaseURL:     srv.URL,
		TokenSource: &orchestrator.StaticTokenSource{Value: orchestratortest.Token},
		Timeout:     5 * time.Second,
		Attempts:    2,
		Backoff:     time.Millisecond,
	})
	require.NoError(t, err)
	sink := &memSink{}
	runner, err := NewRunner(cfg, client, sink, nil)
	require.NoError(t, err)
	runner.NewRunID = func() string { return "run-test" }
	return runner, sink
}

func TestRunRenamesRobot(t *testing.T) {
	srv := newServer(t)
	runner, sink := newRunner(t, srv, writeCSV(t, "UnitA,robot1,true,MACHINE1,user1,robot1-new"), true)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OK)
	assert.Equal(t, []string{"OK"}, sink.outcomes())
	assert.Equal(t, []string{"run-test"}, sink.runIDs)

	puts := srv.Puts()
	require.Len(t, puts, 1)
	var body map[string]any
	require.NoError(t, json.Unmarshal(puts[0], &body))
	assert.EqualValues(t, 42, body["Id"])
	assert.Equal(t, "robot1-new", body["Name"])

	// 定位、按 id 读取、回读校验
	assert.Equal(t, 3, srv.Calls("GET Robots"))
	got, ok := srv.Robot(42)
	require.True(t, ok)
	assert.Equal(t, "robot1-new", got.Name)
}

func TestRunDryRunNeverWrites(t *testing.T) {
	srv := newServer(t)
	runner, sink := newRunner(t, srv, writeCSV(t, "UnitA,robot1,true,MACHINE1,user1,robot1-new"), false)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SkippedDryRun)
	assert.Equal(t, []string{"Skipped-dry run"}, sink.outcomes())
	assert.Zero(t, srv.Calls("PUT Robots"))
}

func TestRunContinuesAfterMissingRobot(t *testing.T) {
	srv := newServer(t)
	runner, sink := newRunner(t, srv, writeCSV(t,
		"UnitA,ghost,true,MACHINE9,user9,ghost-new",
		"UnitA,robot2,true,MACHINE2,user2,robot2-new",
	), true)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.results, 2)
	assert.True(t, strings.HasPrefix(sink.results[0].Outcome(), "Failed-"))
	assert.ErrorIs(t, sink.results[0].Err, renamer.ErrRobotLookup)
	assert.Equal(t, "OK", sink.results[1].Outcome())
	assert.Equal(t, 1, srv.Calls("PUT Robots"))
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.OK)
}

func TestRunAmbiguousUnitSkipsLookup(t *testing.T) {
	srv := newServer(t)
	runner, sink := newRunner(t, srv, writeCSV(t,
		"UnitDup,robot1,true,MACHINE1,user1,robot1-new",
		"UnitA,robot2,true,MACHINE2,user2,robot2",
	), true)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.results, 2)
	assert.ErrorIs(t, sink.results[0].Err, renamer.ErrAmbiguousUnit)
	assert.Equal(t, "Skipped-already updated", sink.results[1].Outcome())
	// 只有第二条任务的定位查询
	assert.Equal(t, 1, srv.Calls("GET Robots"))
	assert.Zero(t, srv.Calls("PUT Robots"))
}

func TestRunVerificationFailure(t *testing.T) {
	srv := newServer(t)
	srv.SetIgnoreUpdates(true)
	runner, sink := newRunner(t, srv, writeCSV(t, "UnitA,robot1,true,MACHINE1,user1,robot1-new"), true)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.results, 1)
	assert.ErrorIs(t, sink.results[0].Err, renamer.ErrVerification)
	assert.Equal(t, "Failed-"+sink.results[0].Err.Error(), sink.results[0].Outcome())
}

func TestRunCachesUnitAcrossRows(t *testing.T) {
	srv := newServer(t)
	runner, sink := newRunner(t, srv, writeCSV(t,
		"UnitA,robot1,true,MACHINE1,user1,robot1",
		"UnitA,robot2,true,MACHINE2,user2,robot2",
	), false)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.results, 2)
	assert.Equal(t, 1, srv.Calls("GET OrganizationUnits"))
}

func TestRunFatalReadErrorBeforeServerCalls(t *testing.T) {
	srv := newServer(t)
	runner, sink := newRunner(t, srv, filepath.Join(t.TempDir(), "missing.csv"), true)

	_, err := runner.Run(context.Background())
	var readErr *records.ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Empty(t, sink.results)
	assert.Zero(t, srv.Calls("GET OrganizationUnits"))
	assert.Zero(t, srv.Calls("GET Robots"))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	srv := newServer(t)
	runner, sink := newRunner(t, srv, writeCSV(t, "UnitA,robot1,true,MACHINE1,user1,robot1-new"), true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.results)
}
