package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("REDIS_DISABLED", "true")

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"gamectl"}, args...))
	return out.String(), err
}

func TestRecord_PrintsResult(t *testing.T) {
	out, err := runCLI(t, "record", "-u", "student-1", "-t", "quiz_completed",
		"-p", `{"quiz_id":"q1","difficulty":"medium","correct":8,"total":10}`)
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, true, res["recognized"])
	assert.Equal(t, float64(1), res["streak_count"])
	assert.Positive(t, res["xp_awarded"])
}

func TestRecord_RejectsBadPayload(t *testing.T) {
	_, err := runCLI(t, "record", "-u", "student-1", "-t", "quiz_completed", "-p", "not json")
	assert.Error(t, err)
}

func TestStats_UnknownUser(t *testing.T) {
	out, err := runCLI(t, "stats", "-u", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, `"exists": false`)
}

func TestMigrate_NeedsPostgres(t *testing.T) {
	_, err := runCLI(t, "migrate")
	assert.ErrorIs(t, err, errMemoryStore)
}

func TestFlags_ListsEveryFeature(t *testing.T) {
	out, err := runCLI(t, "flags")
	require.NoError(t, err)

	var flags []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &flags))
	assert.Len(t, flags, 4)
	assert.Contains(t, out, "gamification.weekly_bonus")
}

func TestMaintenanceRun_RunsEvenWhenScheduleDisabled(t *testing.T) {
	t.Setenv("MAINTENANCE_ENABLED", "false")
	out, err := runCLI(t, "maintenance", "run")
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "complete", summary["state"])
	assert.Equal(t, float64(0), summary["users_scanned"])
}
