package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/stackbot/pkg/routine"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestParseOverridesOnlyWhatIsSet(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
period: 10ms
drive:
  gains:
    kp: 0.5
  fieldrelative: true
lift:
  filtersize: 5
tasks:
  clampsettle: 400ms
`), &cfg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Period != 10*time.Millisecond {
		t.Errorf("period %v", cfg.Period)
	}
	if cfg.Drive.Gains.Kp != 0.5 || cfg.Drive.Gains.Ki != Default().Drive.Gains.Ki {
		t.Errorf("gains %+v", cfg.Drive.Gains)
	}
	if !cfg.Drive.FieldRelative {
		t.Error("field relative not set")
	}
	if cfg.Lift.FilterSize != 5 || cfg.Lift.TopHeight != Default().Lift.TopHeight {
		t.Errorf("lift %+v", cfg.Lift)
	}
	if cfg.Tasks.ClampSettle != 400*time.Millisecond {
		t.Errorf("clamp settle %v", cfg.Tasks.ClampSettle)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	if err := Parse([]byte("drive:\n  deadzone: 0.1\n"), &cfg); err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func TestParseValidates(t *testing.T) {
	cfg := Default()
	err := Parse([]byte("period: 0s\nautonomous: moonwalk\n"), &cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	if !errors.Is(err, routine.ErrUnknownRoutine) {
		t.Errorf("expected an unknown routine error in %v", err)
	}
}

func TestCustomRoutine(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
autonomous: shuffle
routines:
  shuffle:
    timeout: 5s
    steps:
      - task: drive-for-time
        params: {duration: 500ms, strafe: 0.5}
      - task: move-to-height
        mode: parallel
        timeout: 2s
        params: {height: 30}
`), &cfg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	def, ok := cfg.Library().Definition("shuffle")
	if !ok {
		t.Fatal("shuffle routine missing")
	}
	if def.Timeout != 5*time.Second || len(def.Steps) != 2 {
		t.Errorf("definition %+v", def)
	}
	if s := def.Steps[1]; s.Mode != "parallel" || s.Timeout != 2*time.Second || s.Params["height"] != 30 {
		t.Errorf("second step %+v", s)
	}
	// The built-ins are still there.
	if _, ok := cfg.Library().Definition("stack"); !ok {
		t.Error("built-in stack routine missing")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), golog.NewTestLogger(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Period != Default().Period {
		t.Errorf("period %v", cfg.Period)
	}
}

func TestWriteInUseRoundTrips(t *testing.T) {
	logger := golog.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "stackbot.yaml")
	if err := ioutil.WriteFile(path, []byte("lift:\n  decelfactor: 0.5\n"), 0666); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, logger)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.WriteInUse(path, logger); err != nil {
		t.Fatalf("WriteInUse: %v", err)
	}
	inUse := InUsePath(path)
	if filepath.Base(inUse) != "stackbot-in-use.yaml" {
		t.Errorf("in-use path %v", inUse)
	}
	reloaded, err := Load(inUse, logger)
	if err != nil {
		t.Fatalf("Load in-use: %v", err)
	}
	if reloaded.Lift != cfg.Lift || reloaded.Drive != cfg.Drive || reloaded.Tasks != cfg.Tasks {
		t.Errorf("round trip changed config:\n%+v\n%+v", cfg, reloaded)
	}
	if reloaded.Lift.DecelFactor != 0.5 {
		t.Errorf("decel factor %v", reloaded.Lift.DecelFactor)
	}
}
