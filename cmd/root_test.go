package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
	"github.com/JakeFAU/bing-daily-crawler/internal/config"
)

type fakeApp struct {
	runs   int
	closed bool
	err    error
}

func (f *fakeApp) Close()              { f.closed = true }
func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }
func (f *fakeApp) Run(context.Context) (bing.DayRecord, error) {
	f.runs++
	return bing.DayRecord{Date: "2024-01-01", Name: "OHR.Test_EN-US1", Published: f.err == nil}, f.err
}

// withFakeApp swaps the factory and captures the config it was called with.
func withFakeApp(t *testing.T, fake *fakeApp) *config.Config {
	t.Helper()
	t.Setenv("BING_SCHEDULE_TIMEZONE", "UTC")
	t.Setenv("BING_RECORDS_DIR", t.TempDir())

	var got config.Config
	original := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		got = cfg
		return fake, nil
	}
	t.Cleanup(func() { newApp = original })
	return &got
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", ""))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommandBuildsAndClosesApp(t *testing.T) {
	fake := &fakeApp{}
	cfg := withFakeApp(t, fake)

	_, err := execute(t, "run", "--dry-run", "--wait", "--at", "08:30")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.runs)
	assert.True(t, fake.closed)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.Schedule.Wait)
	assert.Equal(t, "08:30", cfg.Schedule.At)
}

func TestRootWithoutSubcommandRuns(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)

	_, err := execute(t, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.runs)
}

func TestRunCommandPropagatesFailure(t *testing.T) {
	fake := &fakeApp{err: errors.New("publish: story phase failed")}
	withFakeApp(t, fake)

	_, err := execute(t, "run", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "story phase")
	assert.True(t, fake.closed)
}

func TestRunCommandRejectsInvalidConfig(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)
	t.Setenv("BOTTOKEN", "")
	t.Setenv("BING_TELEGRAM_BOT_TOKEN", "")

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_token")
	assert.Zero(t, fake.runs)
}

func TestVersionSkipsAppConstruction(t *testing.T) {
	original := newApp
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) {
		return nil, errors.New("must not be called")
	}
	t.Cleanup(func() { newApp = original })

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestResolveAppMissing(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
