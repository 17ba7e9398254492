package docker

import (
	"context"
	"testing"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deployServer = models.Server{ID: 1, Host: "203.0.113.5", Username: "deploy"}

func TestContainerLogsStandalone(t *testing.T) {
	exec := remotetest.New().On("docker logs", remotetest.OK("GET / 200\n"))
	svc := newTestService(exec, newFakeInventory(testServer))

	res := svc.Logs.ContainerLogs(context.Background(), laravelProject(), 0)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, LogSourceContainer, res.Source)
	assert.Equal(t, DefaultContainerLogLines, res.Lines)
	assert.Equal(t, "GET / 200\n", res.Logs)
	assert.True(t, exec.Ran("docker logs --tail 100 demo 2>&1"))
}

func TestContainerLogsCompose(t *testing.T) {
	ctx := context.Background()

	t.Run("app service", func(t *testing.T) {
		exec := remotetest.New().
			On(composeDetect, remotetest.OK("compose")).
			On("docker compose logs --tail=50 app", remotetest.OK("app-1 | ready\n"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Logs.ContainerLogs(ctx, laravelProject(), 50)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, LogSourceAppService, res.Source)
		assert.Equal(t, "app-1 | ready\n", res.Logs)
		assert.True(t, exec.Ran("cd /var/www/demo && docker compose logs --tail=50 app 2>&1"))
	})

	t.Run("falls back to the stack", func(t *testing.T) {
		exec := remotetest.New().
			On(composeDetect, remotetest.OK("compose")).
			On("docker compose logs --tail=2 app", remotetest.Fail(1, "no such service: app")).
			On("docker compose logs --tail=2", remotetest.OK("db-1 | a\ndb-1 | b\nweb-1 | c\nweb-1 | d\n"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Logs.ContainerLogs(ctx, laravelProject(), 2)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, LogSourceStack, res.Source)
		assert.Equal(t, "web-1 | c\nweb-1 | d", res.Logs)
	})

	t.Run("empty app output falls back", func(t *testing.T) {
		exec := remotetest.New().
			On(composeDetect, remotetest.OK("compose")).
			On("docker compose logs --tail=100 app", remotetest.OK("")).
			On("docker compose logs --tail=100", remotetest.OK("worker-1 | started\n"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Logs.ContainerLogs(ctx, laravelProject(), 0)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, LogSourceStack, res.Source)
	})
}

func TestFrameworkLogs(t *testing.T) {
	ctx := context.Background()

	t.Run("inside container", func(t *testing.T) {
		exec := remotetest.New().On("docker exec demo tail", remotetest.OK("[2025-03-14] production.ERROR\n"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Logs.FrameworkLogs(ctx, laravelProject(), 0)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, LogSourceContainer, res.Source)
		assert.Equal(t, DefaultFrameworkLogLines, res.Lines)
		assert.True(t, exec.Ran("docker exec demo tail -n 200 /var/www/html/storage/logs/laravel.log"))
	})

	t.Run("host fallback uses sudo for non-root", func(t *testing.T) {
		exec := remotetest.New().
			On("docker exec", remotetest.Fail(1, "Error: No such container: demo")).
			On("sudo tail", remotetest.OK("[2025-03-14] production.INFO\n"))
		svc := newTestService(exec, newFakeInventory(deployServer))

		res := svc.Logs.FrameworkLogs(ctx, laravelProject(), 20)
		require.True(t, res.Success, res.Error)
		assert.Equal(t, LogSourceHost, res.Source)
		assert.True(t, exec.Ran("sudo tail -n 20 /var/www/demo/storage/logs/laravel.log"))
	})

	t.Run("symfony", func(t *testing.T) {
		exec := remotetest.New()
		svc := newTestService(exec, newFakeInventory(testServer))

		project := laravelProject()
		project.Framework = "Symfony"
		require.True(t, svc.Logs.FrameworkLogs(ctx, project, 10).Success)
		assert.True(t, exec.Ran("/var/www/html/var/log/prod.log"))
	})

	t.Run("unsupported framework", func(t *testing.T) {
		exec := remotetest.New()
		svc := newTestService(exec, newFakeInventory(testServer))

		project := laravelProject()
		project.Framework = "React"
		res := svc.Logs.FrameworkLogs(ctx, project, 0)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "invalid log file type")
		assert.Empty(t, exec.Calls())
	})
}

func TestClearFrameworkLogs(t *testing.T) {
	ctx := context.Background()

	t.Run("existing file is truncated", func(t *testing.T) {
		exec := remotetest.New()
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Logs.ClearFrameworkLogs(ctx, laravelProject())
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "Log file cleared", res.Message)
		assert.True(t, exec.Ran("truncate -s 0 /var/www/demo/storage/logs/laravel.log"))
		assert.False(t, exec.Ran("touch"))
	})

	t.Run("missing file is created", func(t *testing.T) {
		exec := remotetest.New().
			On("test -f", remotetest.Fail(1, "")).
			On("chmod", remotetest.Fail(1, "Operation not permitted"))
		svc := newTestService(exec, newFakeInventory(deployServer))

		res := svc.Logs.ClearFrameworkLogs(ctx, laravelProject())
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "Log file created", res.Message)
		assert.Equal(t, []string{
			"sudo test -f /var/www/demo/storage/logs/laravel.log",
			"sudo touch /var/www/demo/storage/logs/laravel.log",
			"sudo chmod 664 /var/www/demo/storage/logs/laravel.log",
		}, exec.Commands())
	})
}

func TestDownloadFrameworkLogs(t *testing.T) {
	exec := remotetest.New().On("cat /var/www/demo/storage/logs/laravel.log", remotetest.OK("line one\nline two\n"))
	svc := newTestService(exec, newFakeInventory(testServer))

	res := svc.Logs.DownloadFrameworkLogs(context.Background(), laravelProject())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "line one\nline two\n", res.Content)
	assert.Equal(t, "demo-laravel-2025-03-14-150926.log", res.Filename)
}
