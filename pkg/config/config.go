// Package config loads the robot's YAML config over the built-in defaults
// and writes the result back out, so there is always a record of what the
// robot actually ran with.
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/stackbot/pkg/elevation"
	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/headingholder"
	"github.com/tigerbot-team/stackbot/pkg/operator"
	"github.com/tigerbot-team/stackbot/pkg/routine"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
	"github.com/tigerbot-team/stackbot/pkg/tasks"
)

const DefaultPath = "/cfg/stackbot.yaml"

type Sounds struct {
	Start  string
	Teleop string
	Auto   string
	Pause  string
}

type Config struct {
	Period time.Duration

	Drive    headingholder.Config
	Lift     elevation.Config
	Tasks    tasks.Config
	Operator operator.Config
	Hardware hardware.Config
	Sim      hardware.SimConfig
	Sounds   Sounds

	// Autonomous is the routine automode runs.
	Autonomous string
	Routines   map[string]routine.Definition
}

func Default() Config {
	return Config{
		Period:   scheduler.DefaultPeriod,
		Drive:    headingholder.DefaultConfig(),
		Lift:     elevation.DefaultConfig(),
		Tasks:    tasks.DefaultConfig(),
		Operator: operator.DefaultConfig(),
		Hardware: hardware.DefaultConfig(),
		Sim:      hardware.DefaultSimConfig(),
		Sounds: Sounds{
			Start:  "/sounds/stackbotstart.wav",
			Teleop: "/sounds/teleopmode.wav",
			Auto:   "/sounds/automode.wav",
			Pause:  "/sounds/pausemode.wav",
		},
		Autonomous: routine.DefaultRoutine,
	}
}

// Load reads path over the defaults.  A missing file is not an error: the
// robot runs on defaults.  Unknown keys are.
func Load(path string, logger golog.Logger) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warnw("no config file, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "bad config in %s", path)
	}
	return cfg, nil
}

// Parse unmarshals data over cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c Config) Validate() error {
	var errs error
	if c.Period <= 0 {
		errs = multierr.Append(errs, errors.Errorf("period must be positive, not %v", c.Period))
	}
	if c.Lift.FilterSize < 3 {
		errs = multierr.Append(errs, errors.Errorf("lift filter size %d is below 3", c.Lift.FilterSize))
	}
	if c.Lift.DecelFactor < 0 || c.Lift.DecelFactor > 1 {
		errs = multierr.Append(errs, errors.Errorf("lift decel factor %v is outside [0, 1]", c.Lift.DecelFactor))
	}
	if c.Lift.MinHeight >= c.Lift.TopHeight {
		errs = multierr.Append(errs, errors.Errorf("lift min height %v is not below top height %v",
			c.Lift.MinHeight, c.Lift.TopHeight))
	}
	if c.Tasks.ClampSettle < 0 {
		errs = multierr.Append(errs, errors.New("clamp settle time is negative"))
	}
	if _, ok := c.Library().Definition(c.Autonomous); !ok {
		errs = multierr.Append(errs, errors.Wrapf(routine.ErrUnknownRoutine, "autonomous routine %q", c.Autonomous))
	}
	return errs
}

// Library is the built-in routines plus the configured ones.
func (c Config) Library() *routine.Library {
	return routine.NewLibrary(c.Routines)
}

// InUsePath is where WriteInUse puts the config for path: foo.yaml becomes
// foo-in-use.yaml.
func InUsePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-in-use" + ext
}

// WriteInUse writes out the config that we are using.
func (c Config) WriteInUse(path string, logger golog.Logger) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	inUse := InUsePath(path)
	if err := ioutil.WriteFile(inUse, data, 0666); err != nil {
		return errors.Wrap(err, "failed to write in-use config")
	}
	logger.Infow("wrote in-use config", "path", inUse)
	return nil
}
