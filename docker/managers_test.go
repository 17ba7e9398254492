package docker

import (
	"context"
	"testing"
	"time"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImages(t *testing.T) {
	ctx := context.Background()
	rows := `{"ID":"1a","Repository":"demo","Tag":"latest","Size":"512MB"}
{"ID":"2b","Repository":"nginx","Tag":"alpine","Size":"40MB"}
{"ID":"3c","Repository":"registry.example.com/team/app","Tag":"demo-v2","Size":"90MB"}`

	t.Run("list", func(t *testing.T) {
		exec := remotetest.New().On("docker images", remotetest.OK(rows))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Images.List(ctx, testServer)
		require.True(t, res.Success, res.Error)
		assert.Len(t, res.Images, 3)
		assert.True(t, exec.Ran("docker images --format '{{json .}}'"))
	})

	t.Run("for project", func(t *testing.T) {
		exec := remotetest.New().On("docker images", remotetest.OK(rows))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Images.ListForProject(ctx, testServer, laravelProject())
		require.True(t, res.Success, res.Error)
		require.Len(t, res.Images, 2)
		assert.Equal(t, "1a", res.Images[0].ID)
		assert.Equal(t, "3c", res.Images[1].ID)
	})

	t.Run("commands", func(t *testing.T) {
		exec := remotetest.New()
		svc := newTestService(exec, newFakeInventory(testServer))

		require.True(t, svc.Images.Delete(ctx, testServer, "demo:old", true).Success)
		require.True(t, svc.Images.Prune(ctx, testServer, true).Success)
		require.True(t, svc.Images.Pull(ctx, testServer, "nginx:alpine").Success)
		require.True(t, svc.Images.Tag(ctx, testServer, "demo", "registry.example.com/demo:1").Success)
		require.True(t, svc.Images.Save(ctx, testServer, "demo", "/tmp/demo image.tar").Success)
		require.True(t, svc.Images.Load(ctx, testServer, "/tmp/demo.tar").Success)

		assert.Equal(t, []string{
			"docker rmi -f demo:old",
			"docker image prune -f -a",
			"docker pull nginx:alpine",
			"docker tag demo registry.example.com/demo:1",
			"docker save -o '/tmp/demo image.tar' demo",
			"docker load -i /tmp/demo.tar",
		}, exec.Commands())

		pull, _ := exec.Find("docker pull")
		assert.Equal(t, 600*time.Second, pull.Timeout)
	})

	t.Run("required arguments", func(t *testing.T) {
		exec := remotetest.New()
		svc := newTestService(exec, newFakeInventory(testServer))

		assert.Equal(t, "image is required", svc.Images.Delete(ctx, testServer, "", false).Error)
		assert.Equal(t, "target image is required", svc.Images.Tag(ctx, testServer, "demo", " ").Error)
		assert.Empty(t, exec.Calls())
	})
}

func TestNetworks(t *testing.T) {
	ctx := context.Background()

	t.Run("create defaults to bridge", func(t *testing.T) {
		exec := remotetest.New().On("docker network create", remotetest.OK("f00dfeed\n"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Networks.Create(ctx, testServer, "backend", "")
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "f00dfeed", res.ID)
		assert.True(t, exec.Ran("docker network create --driver bridge backend"))
	})

	t.Run("create failure has no id", func(t *testing.T) {
		exec := remotetest.New().On("docker network create", remotetest.Fail(1, "network with name backend already exists"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Networks.Create(ctx, testServer, "backend", "overlay")
		assert.False(t, res.Success)
		assert.Empty(t, res.ID)
		assert.Equal(t, "network with name backend already exists", res.Error)
	})

	t.Run("list connect disconnect delete", func(t *testing.T) {
		exec := remotetest.New().On("docker network ls", remotetest.OK(`{"ID":"aa","Name":"bridge","Driver":"bridge","Scope":"local"}`))
		svc := newTestService(exec, newFakeInventory(testServer))

		list := svc.Networks.List(ctx, testServer)
		require.True(t, list.Success, list.Error)
		require.Len(t, list.Networks, 1)
		assert.Equal(t, "bridge", list.Networks[0].Name)

		require.True(t, svc.Networks.Connect(ctx, testServer, "backend", "demo").Success)
		require.True(t, svc.Networks.Disconnect(ctx, testServer, "backend", "demo").Success)
		require.True(t, svc.Networks.Delete(ctx, testServer, "backend").Success)

		assert.True(t, exec.Ran("docker network connect backend demo"))
		assert.True(t, exec.Ran("docker network disconnect backend demo"))
		assert.True(t, exec.Ran("docker network rm backend"))
	})
}

func TestVolumes(t *testing.T) {
	ctx := context.Background()

	t.Run("create with options", func(t *testing.T) {
		exec := remotetest.New().On("docker volume create", remotetest.OK("data\n"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Volumes.Create(ctx, testServer, "data", VolumeOptions{
			Driver: "local",
			Labels: map[string]string{"project": "demo", "env": "prod"},
		})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "data", res.ID)
		assert.True(t, exec.Ran("docker volume create --driver local --label env=prod --label project=demo data"))
	})

	t.Run("info measures usage", func(t *testing.T) {
		inspect := `[{"Name":"data","Driver":"local","Mountpoint":"/var/lib/docker/volumes/data/_data","Scope":"local"}]`
		exec := remotetest.New().
			On("docker volume inspect", remotetest.OK(inspect)).
			On("du -sb", remotetest.OK("2048000\t/var/lib/docker/volumes/data/_data\n"))
		svc := newTestService(exec, newFakeInventory(testServer))

		deploy := models.Server{ID: 2, Host: "203.0.113.9", Username: "deploy"}
		res := svc.Volumes.Info(ctx, deploy, "data")
		require.True(t, res.Success, res.Error)
		require.NotNil(t, res.Volume)
		assert.Equal(t, "local", res.Volume.Driver)
		assert.Equal(t, int64(2048000), res.UsageBytes)
		assert.Equal(t, "2.048MB", res.Usage)
		assert.True(t, exec.Ran("sudo du -sb /var/lib/docker/volumes/data/_data"))
	})

	t.Run("info tolerates failed measurement", func(t *testing.T) {
		exec := remotetest.New().
			On("docker volume inspect", remotetest.OK(`[{"Name":"data","Mountpoint":"/mnt/data"}]`)).
			On("du -sb", remotetest.Fail(1, "du: cannot access"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Volumes.Info(ctx, testServer, "data")
		require.True(t, res.Success, res.Error)
		assert.Zero(t, res.UsageBytes)
		assert.Empty(t, res.Usage)
	})

	t.Run("missing volume", func(t *testing.T) {
		exec := remotetest.New().On("docker volume inspect", remotetest.Fail(1, "Error: No such volume: data"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Volumes.Info(ctx, testServer, "data")
		assert.False(t, res.Success)
		assert.Equal(t, "Error: No such volume: data", res.Error)
	})
}

func TestParseDuBytes(t *testing.T) {
	size, ok := parseDuBytes("4096\t/mnt\n")
	assert.True(t, ok)
	assert.Equal(t, int64(4096), size)

	_, ok = parseDuBytes("")
	assert.False(t, ok)

	_, ok = parseDuBytes("du: permission denied")
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("login sends password on stdin", func(t *testing.T) {
		exec := remotetest.New()
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.Registry.Login(ctx, testServer, "ghcr.io", "octo", "s3cr3t pass")
		require.True(t, res.Success, res.Error)

		call, ok := exec.Find("docker login")
		require.True(t, ok)
		assert.Equal(t, "docker login ghcr.io -u octo --password-stdin", call.Command)
		assert.Equal(t, []byte("s3cr3t pass"), call.Stdin)
		assert.NotContains(t, call.Command, "s3cr3t")
	})

	t.Run("login requires credentials", func(t *testing.T) {
		exec := remotetest.New()
		svc := newTestService(exec, newFakeInventory(testServer))

		assert.Equal(t, "password is required", svc.Registry.Login(ctx, testServer, "", "octo", "").Error)
		assert.Empty(t, exec.Calls())
	})

	t.Run("push and logout", func(t *testing.T) {
		exec := remotetest.New()
		svc := newTestService(exec, newFakeInventory(testServer))

		require.True(t, svc.Registry.Push(ctx, testServer, "ghcr.io/octo/demo:1").Success)
		require.True(t, svc.Registry.Logout(ctx, testServer, "").Success)
		assert.Equal(t, []string{"docker push ghcr.io/octo/demo:1", "docker logout"}, exec.Commands())
	})
}

func TestSystem(t *testing.T) {
	ctx := context.Background()

	t.Run("installed", func(t *testing.T) {
		exec := remotetest.New().
			On("docker --version", remotetest.OK("Docker version 27.3.1, build ce12230\n")).
			On("docker compose version", remotetest.OK("Docker Compose version v2.29.7\n"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.System.CheckInstallation(ctx, testServer)
		require.True(t, res.Success, res.Error)
		assert.True(t, res.Installed)
		assert.Equal(t, "Docker version 27.3.1, build ce12230", res.Version)
		assert.Equal(t, "Docker Compose version v2.29.7", res.ComposeVersion)
	})

	t.Run("not installed", func(t *testing.T) {
		exec := remotetest.New().On("docker --version", remotetest.Fail(127, "sh: docker: not found"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.System.CheckInstallation(ctx, testServer)
		require.True(t, res.Success, res.Error)
		assert.False(t, res.Installed)
		assert.False(t, exec.Ran("docker compose version"))
	})

	t.Run("info must be json", func(t *testing.T) {
		exec := remotetest.New().On("docker info", remotetest.OK("not json"))
		svc := newTestService(exec, newFakeInventory(testServer))

		res := svc.System.Info(ctx, testServer)
		assert.False(t, res.Success)
		assert.Equal(t, "docker info returned invalid JSON", res.Error)
	})

	t.Run("prune", func(t *testing.T) {
		exec := remotetest.New()
		svc := newTestService(exec, newFakeInventory(testServer))

		require.True(t, svc.System.Prune(ctx, testServer, true).Success)
		assert.True(t, exec.Ran("docker system prune -f --volumes"))
	})
}

func TestParseJSONLines(t *testing.T) {
	rows, err := parseJSONLines[models.VolumeSummary]("{\"Name\":\"a\"}\n\n{\"Name\":\"b\"}\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].Name)

	rows, err = parseJSONLines[models.VolumeSummary]("[{\"Name\":\"a\"}]")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = parseJSONLines[models.VolumeSummary]("   ")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = parseJSONLines[models.VolumeSummary]("Error: not json")
	assert.Error(t, err)
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "c\nd", lastLines("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a\nb", lastLines("a\nb", 10))
}
