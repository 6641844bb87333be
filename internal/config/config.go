package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/racktables-migrator/internal/ipam"
)

// DefaultPath is read when no --config flag is given. A missing default
// file is not an error; a missing explicit one is.
const DefaultPath = "migrator.yaml"

// placeholderTokens are example tokens shipped in NetBox docs and our sample
// config. Running with one of them is always a mistake.
var placeholderTokens = map[string]bool{
	"0123456789abcdef0123456789abcdef01234567": true,
	"changeme": true,
}

// Target is the NetBox API the migration writes to.
type Target struct {
	URL               string        `yaml:"url"`
	Token             string        `yaml:"token"`
	Insecure          bool          `yaml:"insecure"`
	CAFile            string        `yaml:"ca_file"`
	PageSize          int           `yaml:"page_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Source is the RackTables database the migration reads from.
type Source struct {
	Driver string `yaml:"driver"` // "mysql" or "sqlite"
	DSN    string `yaml:"dsn"`
	// UnrackedSite is assigned to devices that occupy no rack space.
	// Empty leaves them without a site, which fails their mapping.
	UnrackedSite string `yaml:"unracked_site"`
	IPv6         bool   `yaml:"ipv6"`
	Extras       Extras `yaml:"extras"`
}

// Extras selects optional RackTables data carried as custom fields. Each is
// skipped when its tables do not exist.
type Extras struct {
	// Attributes copies object attributes (FQDN, SW version, RAM, ...) onto
	// devices and virtual machines.
	Attributes bool `yaml:"attributes"`
	// NAT annotates both ends of IPv4 NAT rules.
	NAT bool `yaml:"nat"`
	// LoadBalancers annotates balancers and virtual IPs of IPv4 virtual services.
	LoadBalancers bool `yaml:"load_balancers"`
	// Monitoring links Cacti graphs from devices and virtual machines.
	Monitoring bool `yaml:"monitoring"`
	// Files lists attached file names. File contents are not copied.
	Files bool `yaml:"files"`
}

// Available configures the address-space analysis.
type Available struct {
	Enabled        bool   `yaml:"enabled"`
	Mode           string `yaml:"mode"` // "prefix", "range" or "both"
	OverlapPolicy  string `yaml:"overlap_policy"`
	Status         string `yaml:"status"`
	Recurse        bool   `yaml:"recurse"`
	MaxPrefixLenV4 int    `yaml:"max_prefix_len_v4"`
	MaxPrefixLenV6 int    `yaml:"max_prefix_len_v6"`
}

// Log configures the process logger.
type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// Config holds all configuration. It is loaded once and passed by value.
type Config struct {
	Target         Target              `yaml:"target"`
	Source         Source              `yaml:"source"`
	Migrate        Toggles             `yaml:"migrate"`
	Available      Available           `yaml:"available"`
	UpdateExisting bool                `yaml:"update_existing"`
	Exclude        map[string][]string `yaml:"exclude"`
	Log            Log                 `yaml:"log"`
	Listen         string              `yaml:"listen"`
}

// Default returns the configuration used for every unset value.
func Default() Config {
	return Config{
		Target: Target{
			PageSize: 1000,
			Timeout:  60 * time.Second,
		},
		Source: Source{
			Driver: "mysql",
			IPv6:   true,
			Extras: Extras{Attributes: true, NAT: true, LoadBalancers: true, Monitoring: true, Files: true},
		},
		Migrate: AllEnabled(),
		Available: Available{
			Enabled:        true,
			Mode:           "prefix",
			OverlapPolicy:  string(ipam.PolicyLarger),
			Status:         "container",
			MaxPrefixLenV4: 30,
			MaxPrefixLenV6: 126,
		},
		Log: Log{
			Level: "info",
		},
		Listen: ":8080",
	}
}

// Load reads defaults, then the YAML file at path, then .env and the
// environment. Command-line flags are applied by the caller afterwards.
func Load(path string) (Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := c.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("reading .env: %w", err)
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	// decoding over the defaults keeps every key the file leaves out
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NETBOX_URL"); v != "" {
		c.Target.URL = v
	}
	if v := os.Getenv("NETBOX_TOKEN"); v != "" {
		c.Target.Token = v
	}
	if v := os.Getenv("RACKTABLES_DRIVER"); v != "" {
		c.Source.Driver = v
	}
	if v := os.Getenv("RACKTABLES_DSN"); v != "" {
		c.Source.DSN = v
	}
	if v := os.Getenv("MIGRATOR_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	var problems []string
	if c.Target.URL == "" {
		problems = append(problems, "target.url is required")
	}
	if c.Target.Token == "" {
		problems = append(problems, "target.token is required")
	} else if placeholderTokens[c.Target.Token] {
		problems = append(problems, "target.token is still the example token")
	}
	if c.Target.PageSize <= 0 {
		problems = append(problems, "target.page_size must be positive")
	}
	if c.Target.RequestsPerSecond < 0 {
		problems = append(problems, "target.requests_per_second must not be negative")
	}
	switch c.Source.Driver {
	case "mysql", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("source.driver %q is not mysql or sqlite", c.Source.Driver))
	}
	if c.Source.DSN == "" {
		problems = append(problems, "source.dsn is required")
	}
	switch c.Available.Mode {
	case "prefix", "range", "both":
	default:
		problems = append(problems, fmt.Sprintf("available.mode %q is not prefix, range or both", c.Available.Mode))
	}
	if _, err := ipam.ParseOverlapPolicy(c.Available.OverlapPolicy); err != nil {
		problems = append(problems, "available.overlap_policy: "+err.Error())
	}
	switch c.Available.Status {
	case "container", "active", "reserved", "deprecated":
	default:
		problems = append(problems, fmt.Sprintf("available.status %q is not a prefix status", c.Available.Status))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, "log.level: "+err.Error())
	}
	if _, err := c.Exclusions(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// WithoutBootstrap returns a copy that skips the custom field stage.
func (c Config) WithoutBootstrap() Config {
	c.Migrate.CustomFields = false
	return c
}
