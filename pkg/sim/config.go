package sim

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config controls a simulation run.
type Config struct {
	// NodeBudget caps the live nodes of the stock tree. Zero means no limit.
	NodeBudget int `json:"node_budget" yaml:"node_budget" validate:"gte=0"`
	// SweepStep bounds the sample spacing of inclined moves. Zero picks a
	// quarter of the cutter radius.
	SweepStep float64 `json:"sweep_step" yaml:"sweep_step" validate:"gte=0"`
	// RemeshEvery updates the surface mesh after every n steps. Zero meshes
	// once at the end of the run.
	RemeshEvery int `json:"remesh_every" yaml:"remesh_every" validate:"gte=0"`
	// CheckRapids tests rapid moves for contact with the stock.
	CheckRapids bool `json:"check_rapids" yaml:"check_rapids"`
	// FailOnCollision stops the run at the first colliding rapid.
	FailOnCollision bool `json:"fail_on_collision" yaml:"fail_on_collision"`
	// Verify runs the structural tree check after every step.
	Verify bool `json:"verify" yaml:"verify"`
	// MeshCells is the marching cubes resolution of smooth mesh export.
	MeshCells int `json:"mesh_cells" yaml:"mesh_cells" validate:"gte=8,lte=2000"`
	// EvalTimeout limits script evaluation.
	EvalTimeout time.Duration `json:"eval_timeout" yaml:"eval_timeout" validate:"gte=0"`
	LogLevel    string        `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		RemeshEvery: 1,
		CheckRapids: true,
		MeshCells:   200,
		EvalTimeout: 5 * time.Second,
		LogLevel:    "info",
	}
}

var validate = validator.New()

// Validate checks the field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// LoadConfig reads a YAML or JSON file over DefaultConfig and validates
// the result. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
				return cfg, errors.Wrapf(jsonErr, "parse config %s (yaml: %v)", path, err)
			}
		}
	}
	if v := os.Getenv("CUTSIM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, cfg.Validate()
}
