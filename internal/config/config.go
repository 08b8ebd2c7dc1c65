// Package config loads kbexport settings from a YAML profiles file.
//
// The file maps profile names to settings:
//
//	default:
//	  instance: https://acme.service-now.com
//	  user: export.bot
//	  output_dir: ./export
//	emea:
//	  domain: emea
//	  package: both
//
// The "default" profile is applied first and the selected profile on top of
// it. Command-line flags override both; KBEXPORT_PASSWORD overrides the
// password from the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kbexport/internal/render"
)

// ErrInvalid marks configuration errors: unreadable files, unknown profiles,
// missing or malformed settings.
var ErrInvalid = errors.New("invalid configuration")

// DefaultProfile is applied before any named profile.
const DefaultProfile = "default"

// PasswordEnv overrides the password from the profiles file.
const PasswordEnv = "KBEXPORT_PASSWORD"

// Config is the complete set of settings for one run.
type Config struct {
	Instance string `yaml:"instance" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password" validate:"required"`

	// Query narrows the published-and-active baseline.
	Query  string `yaml:"query"`
	Domain string `yaml:"domain"`

	OutputDir string `yaml:"output_dir" validate:"required"`
	// FilesDir is relative to OutputDir unless absolute.
	FilesDir string `yaml:"files_dir" validate:"required"`

	Mode      string `yaml:"mode" validate:"required,oneof=list list_changes list_files list_changes_files"`
	NewerOnly bool   `yaml:"newer_only"`
	Package   string `yaml:"package" validate:"required,oneof=none zip merge both"`
	Store     string `yaml:"store" validate:"required,oneof=file sqlite memory"`

	PageSize      int           `yaml:"page_size" validate:"gte=1,lte=10000"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	RenderTimeout time.Duration `yaml:"render_timeout" validate:"gte=0"`

	Browser Browser `yaml:"browser"`
	// Cleanup adds selectors to render.DefaultRules.
	Cleanup render.Rules `yaml:"cleanup"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
}

// Browser configures the headless Chrome used for printing.
type Browser struct {
	ExecPath string `yaml:"exec_path"`
	Headful  bool   `yaml:"headful"`
}

// Defaults returns the settings used when neither profile nor flag sets one.
func Defaults() *Config {
	return &Config{
		FilesDir:      "files",
		Mode:          "list_changes_files",
		Package:       "none",
		Store:         "file",
		PageSize:      200,
		Timeout:       60 * time.Second,
		RenderTimeout: 2 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads path and merges the default profile with profile. An empty path
// yields Defaults; an empty profile applies only the default profile.
func Load(path, profile string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		profiles, err := readProfiles(path)
		if err != nil {
			return nil, err
		}
		if node, ok := profiles[DefaultProfile]; ok {
			if err := node.Decode(cfg); err != nil {
				return nil, fmt.Errorf("%w: %s: profile %q: %v", ErrInvalid, path, DefaultProfile, err)
			}
		}
		if profile != "" && profile != DefaultProfile {
			node, ok := profiles[profile]
			if !ok {
				return nil, fmt.Errorf("%w: %s: no profile %q (have %s)", ErrInvalid, path, profile, strings.Join(names(profiles), ", "))
			}
			if err := node.Decode(cfg); err != nil {
				return nil, fmt.Errorf("%w: %s: profile %q: %v", ErrInvalid, path, profile, err)
			}
		}
	} else if profile != "" && profile != DefaultProfile {
		return nil, fmt.Errorf("%w: profile %q requested without a config file", ErrInvalid, profile)
	}
	if pw := os.Getenv(PasswordEnv); pw != "" {
		cfg.Password = pw
	}
	return cfg, nil
}

func readProfiles(path string) (map[string]yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}
	profiles := map[string]yaml.Node{}
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	return profiles, nil
}

// Profiles lists the profile names defined in path, sorted.
func Profiles(path string) ([]string, error) {
	profiles, err := readProfiles(path)
	if err != nil {
		return nil, err
	}
	return names(profiles), nil
}

func names(profiles map[string]yaml.Node) []string {
	out := make([]string, 0, len(profiles))
	for n := range profiles {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var msgs []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		for _, e := range verrs {
			msgs = append(msgs, formatFieldError(e))
		}
	}
	// Packages are written to output_dir; a files folder equal to it would
	// collect them as articles.
	if c.OutputDir != "" && c.FilesDir != "" && samePath(c.FilesPath(), c.OutputDir) {
		msgs = append(msgs, "files_dir must be a folder inside output_dir, not output_dir itself")
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		if field == "password" {
			return fmt.Sprintf("password is required (set it in the profile or %s)", PasswordEnv)
		}
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %q)", field, e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// FilesPath returns the resolved rendered-articles folder.
func (c *Config) FilesPath() string {
	if filepath.IsAbs(c.FilesDir) {
		return c.FilesDir
	}
	return filepath.Join(c.OutputDir, c.FilesDir)
}

// Rules returns the clean-up rules: the defaults plus the profile's additions.
func (c *Config) Rules() render.Rules {
	return render.DefaultRules.Merge(c.Cleanup)
}

// PrepareDirs creates the output and files folders. Failure is a
// configuration error.
func (c *Config) PrepareDirs() error {
	for _, dir := range []string{c.OutputDir, c.FilesPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: output directory: %v", ErrInvalid, err)
		}
	}
	probe, err := os.CreateTemp(c.OutputDir, ".probe-")
	if err != nil {
		return fmt.Errorf("%w: output directory not writable: %v", ErrInvalid, err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.Password != "" {
		cp.Password = "********"
	}
	return cp
}
