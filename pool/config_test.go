package pool

import (
	"flag"
	"testing"

	"github.com/alecthomas/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, BackingHeap, cfg.Backing)
	assert.Equal(t, ByteSize(64*units.KiB), cfg.InitialCapacity)
	assert.Equal(t, ByteSize(64*units.MiB), cfg.MaxRetainedCapacity)
	assert.Equal(t, 16, cfg.MaxIdle)
	assert.Equal(t, ByteSize(0), cfg.MemoryLimit)
	require.NoError(t, cfg.Validate())
}

func TestConfigFlags(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlagsWithPrefix(fs, "parser.")

	require.NoError(t, fs.Parse([]string{
		"-parser.backing=mmap",
		"-parser.initial-capacity=1MiB",
		"-parser.max-retained-capacity=8MiB",
		"-parser.max-idle=4",
		"-parser.memory-limit=1073741824",
	}))
	assert.Equal(t, Config{
		Backing:             BackingMmap,
		InitialCapacity:     ByteSize(units.MiB),
		MaxRetainedCapacity: ByteSize(8 * units.MiB),
		MaxIdle:             4,
		MemoryLimit:         ByteSize(units.GiB),
	}, cfg)

	err := fs.Parse([]string{"-parser.initial-capacity=lots"})
	assert.Error(t, err)
}

func TestConfigYAML(t *testing.T) {
	in := `
backing: heap
initial_capacity: 4KiB
max_retained_capacity: 16MiB
max_idle: 2
memory_limit: 512
`
	cfg := DefaultConfig()
	require.NoError(t, yaml.Unmarshal([]byte(in), &cfg))
	assert.Equal(t, ByteSize(4*units.KiB), cfg.InitialCapacity)
	assert.Equal(t, ByteSize(16*units.MiB), cfg.MaxRetainedCapacity)
	assert.Equal(t, 2, cfg.MaxIdle)
	assert.Equal(t, ByteSize(512), cfg.MemoryLimit)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	var roundTrip Config
	require.NoError(t, yaml.Unmarshal(out, &roundTrip))
	assert.Equal(t, cfg, roundTrip)

	err = yaml.Unmarshal([]byte("initial_capacity: -4KiB\n"), &cfg)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		expected error
	}{
		{"defaults", func(*Config) {}, nil},
		{"mmap", func(cfg *Config) { cfg.Backing = BackingMmap }, nil},
		{"unknown backing", func(cfg *Config) { cfg.Backing = "disk" }, errUnsupportedBacking},
		{"negative idle", func(cfg *Config) { cfg.MaxIdle = -1 }, errInvalidMaxIdle},
		{"retained below initial", func(cfg *Config) { cfg.MaxRetainedCapacity = cfg.InitialCapacity - 1 }, errRetainedBelowInitial},
		{"zero initial", func(cfg *Config) { cfg.InitialCapacity = 0 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.expected == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expected)
			}
		})
	}
}

func TestConfigValidateInitialTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapacity = ByteSize(4 * units.EiB)
	cfg.MaxRetainedCapacity = cfg.InitialCapacity

	assert.EqualError(t, cfg.Validate(), "initial capacity 4EiB exceeds the maximum")
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in       string
		expected ByteSize
		wantErr  bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"100", 100, false},
		{"64KiB", ByteSize(64 * units.KiB), false},
		{" 2MiB ", ByteSize(2 * units.MiB), false},
		{"1GB", ByteSize(units.GiB), false},
		{"many", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseByteSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	b := ByteSize(64 * units.KiB)
	assert.Equal(t, "64KiB", b.String())
}
