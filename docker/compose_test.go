package docker

import (
	"context"
	"testing"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/remote"
	"github.com/juls0730/fluxops/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsesCompose(t *testing.T) {
	ctx := context.Background()

	t.Run("manifest present", func(t *testing.T) {
		exec := remotetest.New().On(composeDetect, remotetest.OK("compose\n"))
		d := NewDetector(exec, DefaultConfig())

		assert.True(t, d.UsesCompose(ctx, testServer, laravelProject()))

		call, ok := exec.Find(composeDetect)
		require.True(t, ok)
		assert.Equal(t, "test -f /var/www/demo/docker-compose.yml && echo 'compose' || echo 'standalone'", call.Command)
	})

	t.Run("manifest absent", func(t *testing.T) {
		exec := remotetest.New().On(composeDetect, remotetest.OK("standalone\n"))
		d := NewDetector(exec, DefaultConfig())

		assert.False(t, d.UsesCompose(ctx, testServer, laravelProject()))
	})

	t.Run("fault counts as standalone", func(t *testing.T) {
		exec := remotetest.New().On(composeDetect, remotetest.Fault(remote.ErrConnectivity))
		d := NewDetector(exec, DefaultConfig())

		assert.False(t, d.UsesCompose(ctx, testServer, laravelProject()))
	})

	t.Run("detected on every call", func(t *testing.T) {
		exec := remotetest.New().On(composeDetect, remotetest.OK("standalone"), remotetest.OK("compose"))
		d := NewDetector(exec, DefaultConfig())

		assert.False(t, d.UsesCompose(ctx, testServer, laravelProject()))
		assert.True(t, d.UsesCompose(ctx, testServer, laravelProject()))
	})
}

func TestResolveAppContainerName(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		running string
		want    string
	}{
		{"compose v2", "demo-db\ndemo-app\napp\n", "demo-app"},
		{"compose v1", "demo_db_1\ndemo_app_1\napp\n", "demo_app_1"},
		{"generic", "redis\napp\n", "app"},
		{"nothing running", "", "demo-app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := remotetest.New().On("docker ps --format", remotetest.OK(tt.running))
			d := NewDetector(exec, DefaultConfig())

			assert.Equal(t, tt.want, d.ResolveAppContainerName(ctx, testServer, laravelProject()))
		})
	}
}

func TestComposeServices(t *testing.T) {
	manifest := `
services:
  web:
    image: nginx
  app:
    build: .
    container_name: demo-custom
volumes:
  data: {}
`
	exec := remotetest.New().On("cat /var/www/demo/docker-compose.yml", remotetest.OK(manifest))
	d := NewDetector(exec, DefaultConfig())

	services, err := d.ComposeServices(context.Background(), testServer, laravelProject())
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "web"}, services)
}

func TestComposeStatusParsesEitherFormat(t *testing.T) {
	lines := `{"Name":"demo-app-1","Service":"app","State":"running"}
{"Name":"demo-db-1","Service":"db","State":"exited"}`
	array := `[{"Name":"demo-app-1","Service":"app","State":"running"}]`

	for name, out := range map[string]string{"lines": lines, "array": array} {
		t.Run(name, func(t *testing.T) {
			exec := remotetest.New().On("docker compose ps", remotetest.OK(out))
			d := NewDetector(exec, DefaultConfig())

			services, err := d.ComposeStatus(context.Background(), testServer, laravelProject())
			require.NoError(t, err)
			require.NotEmpty(t, services)
			assert.Equal(t, "app", services[0].Service)
			assert.Equal(t, "running", services[0].State)
		})
	}
}

func TestDeclaredContainerNames(t *testing.T) {
	manifest := "services:\n  app:\n    container_name: \"demo-app\"\n  db:\n    container_name: 'demo-db'\r\n  cache:\n    image: redis\ncontainer_name: top-level\n"

	assert.Equal(t, []string{"demo-app", "demo-db"}, declaredContainerNames(manifest))
}

func TestPrefixedContainerNames(t *testing.T) {
	out := "demo-app-1\ndemo_db_1\ndemonstration\nother-demo-1\ndemo\n"

	assert.Equal(t, []string{"demo-app-1", "demo_db_1"}, prefixedContainerNames(out, "demo"))
}

func TestDescribe(t *testing.T) {
	exec := remotetest.New()
	d := NewDetector(exec, DefaultConfig())

	desc, err := d.describe(context.Background(), testServer, models.Project{ID: 12, Slug: "Shop Front", Framework: "Next.js", ServerID: 1})
	require.NoError(t, err)
	assert.Equal(t, "shop-front", desc.Slug)
	assert.Equal(t, "/var/www/shop-front", desc.Path)
	assert.Equal(t, 8012, desc.HostPort)
	assert.Equal(t, 3000, desc.ContainerPort)
	assert.False(t, desc.Compose)

	_, err = d.describe(context.Background(), testServer, models.Project{ID: 1, Slug: "!!!"})
	assert.ErrorIs(t, err, remote.ErrPrecondition)
}
