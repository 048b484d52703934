package harness

import (
	"github.com/launchdarkly/browser-contract-tests/browser"
	"github.com/launchdarkly/browser-contract-tests/config"
	"github.com/launchdarkly/browser-contract-tests/coverage"
	"github.com/launchdarkly/browser-contract-tests/golden"

	"github.com/spf13/afero"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

// Environment holds everything that is set up once per process, before any suite runs.
type Environment struct {
	config   config.Config
	launcher browser.Launcher
	fs       afero.Fs
	golden   *golden.Store
	coverage *coverage.Recorder
	loggers  ldlog.Loggers
}

// NewEnvironment binds the golden store to the product-specific directories and deletes any
// output left over from a previous run. If coverage is enabled in the configuration, the
// launcher is wrapped so that every browser API call is recorded.
func NewEnvironment(
	cfg config.Config,
	launcher browser.Launcher,
	fs afero.Fs,
	loggers ldlog.Loggers,
) (*Environment, error) {
	env := &Environment{
		config:   cfg,
		launcher: launcher,
		fs:       fs,
		golden:   golden.New(fs, cfg.GoldenDir(), cfg.OutputDir()),
		loggers:  loggers,
	}
	if cfg.Coverage {
		env.coverage = coverage.NewRecorder()
		env.launcher = env.coverage.Track(launcher)
	}
	if err := env.golden.ClearOutput(); err != nil {
		return nil, err
	}
	return env, nil
}

func (e *Environment) Config() config.Config { return e.config }

// Launcher returns the launcher used to start browsers, which records calls if coverage is on.
func (e *Environment) Launcher() browser.Launcher { return e.launcher }

func (e *Environment) Golden() *golden.Store { return e.golden }

// Coverage returns the coverage recorder, or nil if coverage is not enabled.
func (e *Environment) Coverage() *coverage.Recorder { return e.coverage }

func (e *Environment) Loggers() ldlog.Loggers { return e.loggers }

// Close releases the launcher.
func (e *Environment) Close() error {
	return e.launcher.Close()
}
