package harness

import (
	"fmt"
	"runtime"
	"time"

	"github.com/launchdarkly/browser-contract-tests/config"
	"github.com/launchdarkly/browser-contract-tests/framework"
)

// Mode says what Registration.Register does.
type Mode int

const (
	// Active registrations run their action.
	Active Mode = iota

	// Skipped registrations are listed in the results as skipped, with a reason.
	Skipped

	// Omitted registrations do not appear in the results at all.
	Omitted
)

func (m Mode) String() string {
	switch m {
	case Active:
		return "active"
	case Skipped:
		return "skipped"
	case Omitted:
		return "omitted"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Registration is a test or describe block whose mode has been decided, but which has not been
// run yet.
type Registration struct {
	Name   string
	Action func(*T)
	Mode   Mode
	Reason string

	describe bool
	hooks    Hooks
}

// Register runs the registration as a test (or describe block) of t, lists it as skipped, or
// does nothing, depending on its mode.
func (r Registration) Register(t *T) {
	switch r.Mode {
	case Active:
		if r.describe {
			t.Describe(r.Name, r.hooks, r.Action)
		} else {
			t.Run(r.Name, r.Action)
		}
	case Skipped:
		reason := r.Reason
		t.context.Run(r.Name, func(c *framework.Context) {
			c.SkipWithReason(reason)
		})
	}
}

// Registrar creates registrations that are active or not depending on the browser under test,
// how it was installed, the operating system and the date. Each decision is made when the
// registration is created.
type Registrar struct {
	cfg  config.Config
	now  func() time.Time
	goos string
}

// RegistrarOption customizes a Registrar.
type RegistrarOption func(*Registrar)

// WithClock sets the function the Registrar uses to get the current time.
func WithClock(now func() time.Time) RegistrarOption {
	return func(r *Registrar) { r.now = now }
}

// WithOS sets the operating system identifier, in runtime.GOOS form, that the Registrar checks.
func WithOS(goos string) RegistrarOption {
	return func(r *Registrar) { r.goos = goos }
}

// NewRegistrar creates a Registrar for the given configuration.
func NewRegistrar(cfg config.Config, opts ...RegistrarOption) *Registrar {
	r := &Registrar{cfg: cfg, now: time.Now, goos: runtime.GOOS}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registrar) when(active bool, name string, action func(*T), reason string) Registration {
	reg := Registration{Name: name, Action: action, Mode: Active}
	if !active {
		reg.Mode = Skipped
		reg.Reason = reason
	}
	return reg
}

// ItFailsFirefox is skipped when testing Firefox.
func (r *Registrar) ItFailsFirefox(name string, action func(*T)) Registration {
	return r.when(!r.cfg.IsFirefox(), name, action, "known failure on Firefox")
}

// ItChromeOnly is skipped unless testing Chromium.
func (r *Registrar) ItChromeOnly(name string, action func(*T)) Registration {
	return r.when(r.cfg.IsChromium(), name, action, "Chromium only")
}

// DescribeChromeOnly is a describe block that is only registered when testing Chromium. For
// other products it is omitted from the results entirely, rather than listed as skipped.
func (r *Registrar) DescribeChromeOnly(name string, hooks Hooks, action func(*T)) Registration {
	reg := Registration{Name: name, Action: action, Mode: Active, describe: true, hooks: hooks}
	if !r.cfg.IsChromium() {
		reg.Mode = Omitted
		reg.Reason = "Chromium only"
	}
	return reg
}

// ItOnlyRegularInstall is skipped unless the browser is the managed download.
func (r *Registrar) ItOnlyRegularInstall(name string, action func(*T)) Registration {
	return r.when(r.cfg.IsStandardInstall(), name, action, "requires the standard browser install")
}

// ItFailsWindowsUntilDate is skipped on Windows until the given time has passed.
func (r *Registrar) ItFailsWindowsUntilDate(until time.Time, name string, action func(*T)) Registration {
	gated := r.goos == "windows" && r.now().Before(until)
	return r.when(!gated, name, action,
		fmt.Sprintf("known failure on Windows until %s", until.Format("2006-01-02")))
}
