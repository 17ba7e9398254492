package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/remote"
)

const (
	StepGitPull         = "Git Pull"
	StepComposerInstall = "Composer Install"
	StepNPMInstall      = "NPM Install"
	StepNPMBuild        = "NPM Build"
	StepMigrations      = "Database Migrations"
	StepClearCaches     = "Clear Caches"
	StepRebuildCaches   = "Rebuild Caches"
	StepRestartQueue    = "Restart Queue"
	StepRestartServices = "Restart Services"

	fixupTimeout = 60 * time.Second
)

// target is what a step needs to run against one project.
type target struct {
	server  models.Server
	project models.Project
	path    string
}

type step struct {
	name string
	run  func(ctx context.Context, t target) (string, error)
}

func (e *Engine) steps() []step {
	return []step{
		{StepGitPull, e.gitPull},
		{StepComposerInstall, e.composerInstall},
		{StepNPMInstall, e.npmInstall},
		{StepNPMBuild, e.npmBuild},
		{StepMigrations, e.migrate},
		{StepClearCaches, e.clearCaches},
		{StepRebuildCaches, e.rebuildCaches},
		{StepRestartQueue, e.restartQueue},
		{StepRestartServices, e.restartServices},
	}
}

// transcript collects the commands a step ran and the text it reports.
type transcript struct {
	strings.Builder
}

func (t *transcript) command(cmd string) {
	t.WriteString("$ " + cmd + "\n")
}

func (t *transcript) result(text string) string {
	t.WriteString(text)
	return t.String()
}

// run executes cmd in the project directory and fails on a non-zero exit.
func (e *Engine) run(ctx context.Context, t target, cmd string, timeout time.Duration) (remote.CommandResult, error) {
	res, err := e.exec.RunWithTimeout(ctx, t.server, remote.InDir(t.path, remote.WithStderr(cmd)), timeout, false)
	return res, remote.Check(res, err)
}

func (e *Engine) fixup(name string, t target, cmd string) remote.Step {
	return remote.Step{
		Name: name,
		Run: func(ctx context.Context) error {
			_, err := e.run(ctx, t, cmd, fixupTimeout)
			return err
		},
	}
}

func (e *Engine) gitPull(ctx context.Context, t target) (string, error) {
	probe, err := e.exec.Run(ctx, t.server, remote.Join("test", "-d", t.path+"/.git"), false)
	if err != nil {
		return "", err
	}
	if !probe.Successful() {
		return "Skipped - Not a Git repository", nil
	}

	var out transcript

	chown := remote.And(
		remote.Privileged(t.server, "chown -R www-data:www-data .git"),
		remote.Privileged(t.server, "chmod -R 775 .git"),
	)
	out.command("chown -R www-data:www-data .git && chmod -R 775 .git")
	remote.BestEffort(ctx, e.logger, e.fixup("fix .git permissions", t, chown))

	branch := t.project.GitBranch()
	cmd := remote.And(
		remote.Join("git", "fetch", "origin", branch),
		remote.Join("git", "reset", "--hard", "origin/"+branch),
	)
	out.command(cmd)

	res, err := e.run(ctx, t, cmd, e.config.Timeouts.GitPull)
	if err != nil {
		return out.String(), err
	}

	if text := res.Output(); text != "" {
		return out.result(text), nil
	}
	return out.result("Successfully pulled"), nil
}

func (e *Engine) composerInstall(ctx context.Context, t target) (string, error) {
	var out transcript

	cmd := "composer install --no-interaction --prefer-dist --optimize-autoloader --no-dev"
	out.command(cmd)
	if _, err := e.run(ctx, t, cmd, e.config.Timeouts.Install); err != nil {
		return out.String(), err
	}

	return out.result("Dependencies installed successfully"), nil
}

func (e *Engine) npmInstall(ctx context.Context, t target) (string, error) {
	var out transcript

	cmd := "npm install"
	lock, err := e.exec.Run(ctx, t.server, remote.Join("test", "-f", t.path+"/package-lock.json"), false)
	if err != nil {
		return "", err
	}
	if lock.Successful() {
		cmd = "npm ci"
	}

	out.command(cmd)
	if _, err := e.run(ctx, t, cmd, e.config.Timeouts.Install); err != nil {
		return out.String(), err
	}

	return out.result("Node dependencies installed"), nil
}

// npmBuild runs the build script with the project's local binaries on PATH
// and falls back to invoking vite directly.
func (e *Engine) npmBuild(ctx context.Context, t target) (string, error) {
	var out transcript

	out.command(`PATH="node_modules/.bin:$PATH" npm run build`)
	cmd := fmt.Sprintf(`PATH=%s:"$PATH" npm run build`, remote.Quote(t.path+"/node_modules/.bin"))
	_, err := e.run(ctx, t, cmd, e.config.Timeouts.AssetBuild)
	if err == nil {
		return out.result("Frontend assets built successfully"), nil
	}
	if k := remote.Classify(err); k == remote.KindConnectivity || k == remote.KindTimeout {
		return out.String(), err
	}
	e.logger.Debugw("npm run build failed, trying vite directly", "project", t.project.Slug, "error", err)

	fallback := "node ./node_modules/.bin/vite build"
	out.command(fallback)
	if _, err := e.run(ctx, t, fallback, e.config.Timeouts.AssetBuild); err != nil {
		return out.String(), err
	}

	return out.result("Frontend assets built successfully"), nil
}

func (e *Engine) migrate(ctx context.Context, t target) (string, error) {
	var out transcript

	cmd := "php artisan migrate --force"
	out.command(cmd)
	res, err := e.run(ctx, t, cmd, e.config.Timeouts.Artisan)
	if err != nil {
		return out.String(), err
	}

	if text := res.Output(); text != "" {
		return out.result(text), nil
	}
	return out.result("No pending migrations"), nil
}

func (e *Engine) clearCaches(ctx context.Context, t target) (string, error) {
	var out transcript

	out.command("rm -rf bootstrap/cache/*.php")
	out.command("composer dump-autoload -o")
	remote.BestEffort(ctx, e.logger,
		e.fixup("remove compiled bootstrap cache", t, "rm -rf bootstrap/cache/*.php"),
		e.fixup("dump autoload", t, "composer dump-autoload -o"),
	)

	if err := e.artisan(ctx, t, &out, "optimize:clear", "package:discover"); err != nil {
		return out.String(), err
	}

	return out.result("All caches cleared, packages re-discovered"), nil
}

func (e *Engine) rebuildCaches(ctx context.Context, t target) (string, error) {
	var out transcript

	if err := e.artisan(ctx, t, &out, "config:cache", "route:cache", "view:cache", "event:cache"); err != nil {
		return out.String(), err
	}

	return out.result("Caches rebuilt successfully"), nil
}

func (e *Engine) restartQueue(ctx context.Context, t target) (string, error) {
	var out transcript

	if err := e.artisan(ctx, t, &out, "queue:restart"); err != nil {
		return out.String(), err
	}

	return out.result("Queue workers will restart on next job"), nil
}

// artisan runs each command in order and stops at the first failure.
func (e *Engine) artisan(ctx context.Context, t target, out *transcript, commands ...string) error {
	for _, command := range commands {
		cmd := "php artisan " + command
		out.command(cmd)
		if _, err := e.run(ctx, t, cmd, e.config.Timeouts.Artisan); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) restartServices(ctx context.Context, t target) (string, error) {
	var out transcript

	if t.project.RuntimeOrDefault() == models.RuntimeDocker {
		out.command("restart containers")
		res := e.restarter.Restart(ctx, t.project)
		if !res.Success {
			return out.String(), errors.New(res.Error)
		}

		return out.result(res.Message), nil
	}

	out.command("chown -R www-data:www-data storage bootstrap/cache public/build")
	remote.BestEffort(ctx, e.logger,
		e.fixup("fix runtime permissions", t, remote.Privileged(t.server, "chown -R www-data:www-data storage bootstrap/cache public/build")),
	)

	service := e.config.PHPFPMService
	out.command("systemctl restart " + service)
	cmd := remote.Or(
		remote.Privileged(t.server, remote.Join("systemctl", "restart", service)),
		remote.Privileged(t.server, remote.Join("service", service, "restart")),
	)
	if _, err := e.run(ctx, t, cmd, fixupTimeout); err != nil {
		return out.String(), err
	}

	return out.result("PHP-FPM restarted - OPcache cleared, permissions fixed"), nil
}
