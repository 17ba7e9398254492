package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/juls0730/fluxops/cmd/flux/models"
	fluxmodels "github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDaemon(t *testing.T) *client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(projectsResponse{
			Envelope: pkg.Succeeded(""),
			Projects: []fluxmodels.Project{{ID: 3, Slug: "shop-front"}, {ID: 4, Slug: "blog"}},
		})
	})
	mux.HandleFunc("POST /projects/{id}/deployments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(pkg.Failure("project shop-front is already being deployed (run r1)"))
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return newClient(models.Config{DaemonURL: srv.URL + "/"})
}

func TestGetProjectIDFromArguments(t *testing.T) {
	c := newTestDaemon(t)

	id, name, err := GetProjectID(c, "start", []string{"12"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, "12", name)

	id, name, err = GetProjectID(c, "start", []string{"Shop Front"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, "shop-front", name)

	_, _, err = GetProjectID(c, "start", []string{"missing"})
	assert.ErrorContains(t, err, "project missing not found")
}

func TestGetProjectIDFromFluxJSON(t *testing.T) {
	c := newTestDaemon(t)

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, _, err = GetProjectID(c, "deploy", nil)
	assert.ErrorContains(t, err, "usage: flux deploy <project>")

	data, err := json.Marshal(pkg.ProjectConfig{ID: 4, Slug: "blog"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flux.json"), data, 0644))

	id, name, err := GetProjectID(c, "deploy", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.Equal(t, "blog", name)
}

func TestClientErrors(t *testing.T) {
	c := newTestDaemon(t)

	var res pkg.DeploymentResult
	err := c.do("POST", "/projects/3/deployments", nil, &res)
	assert.EqualError(t, err, "project shop-front is already being deployed (run r1)")

	err = c.do("GET", "/broken", nil, nil)
	assert.EqualError(t, err, "boom")
}

func TestReadEnvFile(t *testing.T) {
	dir := t.TempDir()

	env, err := readEnvFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Empty(t, env)

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV=staging\n# comment\nDB_PASSWORD=\"s3cret value\"\n"), 0644))

	env, err = readEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"APP_ENV": "staging", "DB_PASSWORD": "s3cret value"}, env)
}

func TestStepReporterPrintsEachTransitionOnce(t *testing.T) {
	var out bytes.Buffer
	reporter := &stepReporter{
		out:      models.NewCustomStdoutTo(models.NewCustomSpinnerWriter(), &out),
		spinner:  nil,
		reported: make(map[int]string),
	}

	run := &pkg.DeploymentRun{Steps: []pkg.DeploymentStep{
		{Name: "Git Pull", Status: pkg.StatusSuccess, Output: "Already up to date.\nmore"},
		{Name: "Composer Install", Status: pkg.StatusFailed},
	}}

	reporter.report(run)
	reporter.report(run)

	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("✓ Git Pull: Already up to date.\n")))
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("✗ Composer Install\n")))
}

func TestStopHelpDescribesComposeFailures(t *testing.T) {
	assert.Contains(t, stopHelp, "flux stop [project]")
	assert.Contains(t, stopHelp, "already gone still counts as stopped")
	assert.Contains(t, stopHelp, "compose stack reports an error")
}
