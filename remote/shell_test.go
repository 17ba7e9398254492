package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/juls0730/fluxops/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"demo", "demo"},
		{"", "''"},
		{"my app", "'my app'"},
		{"it's", `'it'"'"'s'`},
		{"$(rm -rf /)", "'$(rm -rf /)'"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in))
		})
	}
}

func TestJoinQuotesEveryArgument(t *testing.T) {
	got := Join("docker", "ps", "-a", "--filter", "name=demo", "--format", "{{json .}}")
	assert.Equal(t, "docker ps -a --filter name=demo --format '{{json .}}'", got)
}

func TestCompose(t *testing.T) {
	assert.Equal(t, "a && b", And("a", "", "b"))
	assert.Equal(t, "a || b", Or("a", "b"))
	assert.Equal(t, "cd '/var/www/my app' && ls", InDir("/var/www/my app", "ls"))
	assert.Equal(t, "ls 2>&1", WithStderr("ls"))
}

func TestPrivileged(t *testing.T) {
	assert.Equal(t, "cat x", Privileged(models.Server{Username: "root"}, "cat x"))
	assert.Equal(t, "cat x", Privileged(models.Server{}, "cat x"))
	assert.Equal(t, "sudo cat x", Privileged(models.Server{Username: "deploy"}, "cat x"))
}

func TestBestEffortRunsEveryStep(t *testing.T) {
	var ran []string
	step := func(name string, err error) Step {
		return Step{Name: name, Run: func(ctx context.Context) error {
			ran = append(ran, name)
			return err
		}}
	}

	failures := BestEffort(context.Background(), zap.NewNop().Sugar(),
		step("one", errors.New("boom")),
		step("two", nil),
		step("three", errors.New("bang")),
	)

	assert.Equal(t, []string{"one", "two", "three"}, ran)
	assert.Len(t, failures, 2)
}
