package pool

import (
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jstoolkit/arena"
)

const (
	// BackingHeap serves chunks from the Go heap.
	BackingHeap = "heap"

	// BackingMmap serves chunks from anonymous memory mappings.
	BackingMmap = "mmap"

	defaultInitialCapacity     = 64 * units.KiB
	defaultMaxRetainedCapacity = 64 * units.MiB
	defaultMaxIdle             = 16
)

var (
	supportedBackings = []string{BackingHeap, BackingMmap}

	errUnsupportedBacking   = errors.New("unsupported arena backing")
	errInvalidMaxIdle       = errors.New("max idle arenas must not be negative")
	errRetainedBelowInitial = errors.New("max retained capacity must not be below the initial capacity")
)

// Config configures a Pool.
type Config struct {
	Backing             string   `yaml:"backing"`
	InitialCapacity     ByteSize `yaml:"initial_capacity"`
	MaxRetainedCapacity ByteSize `yaml:"max_retained_capacity"`
	MaxIdle             int      `yaml:"max_idle"`
	MemoryLimit         ByteSize `yaml:"memory_limit"`
}

// RegisterFlags registers the pool flags.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix(f, "arena-pool.")
}

// RegisterFlagsWithPrefix registers the pool flags with every name prefixed.
func (cfg *Config) RegisterFlagsWithPrefix(f *flag.FlagSet, prefix string) {
	cfg.InitialCapacity = ByteSize(defaultInitialCapacity)
	cfg.MaxRetainedCapacity = ByteSize(defaultMaxRetainedCapacity)

	f.StringVar(&cfg.Backing, prefix+"backing", BackingHeap, fmt.Sprintf("Where arena chunks come from. Supported values: %s.", strings.Join(supportedBackings, ", ")))
	f.Var(&cfg.InitialCapacity, prefix+"initial-capacity", "Capacity of the first chunk of every new arena. 0 defers allocation to first use.")
	f.Var(&cfg.MaxRetainedCapacity, prefix+"max-retained-capacity", "Arenas that grew beyond this capacity are released instead of returned to the pool.")
	f.IntVar(&cfg.MaxIdle, prefix+"max-idle", defaultMaxIdle, "Maximum number of idle arenas kept for reuse.")
	f.Var(&cfg.MemoryLimit, prefix+"memory-limit", "Upper bound on chunk memory held by all arenas of the pool. 0 means unlimited.")
}

// Validate the config.
func (cfg *Config) Validate() error {
	if !slices.Contains(supportedBackings, cfg.Backing) {
		return errors.Wrapf(errUnsupportedBacking, "%q", cfg.Backing)
	}
	if cfg.MaxIdle < 0 {
		return errInvalidMaxIdle
	}
	if cfg.InitialCapacity > ByteSize(arena.MaxInitialCapacity) {
		return errors.Errorf("initial capacity %s exceeds the maximum", cfg.InitialCapacity)
	}
	if cfg.MaxRetainedCapacity < cfg.InitialCapacity {
		return errRetainedBelowInitial
	}
	return nil
}

// ByteSize is a byte count written with base-2 units, like "64KiB".
type ByteSize uint64

// String implements flag.Value and fmt.Stringer.
func (b ByteSize) String() string {
	return units.Base2Bytes(b).String()
}

// Set implements flag.Value.
func (b *ByteSize) Set(s string) error {
	v, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Plain integers are bytes.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return units.Base2Bytes(b).String(), nil
}

func parseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if strings.Trim(s, "0123456789") == "" {
		s += "B"
	}
	v, err := units.ParseBase2Bytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid byte size %q", s)
	}
	if v < 0 {
		return 0, errors.Errorf("negative byte size %q", s)
	}
	return ByteSize(v), nil
}

// DefaultConfig returns a Config holding the flag defaults.
func DefaultConfig() Config {
	var cfg Config
	cfg.RegisterFlags(flag.NewFlagSet("", flag.PanicOnError))
	return cfg
}
