// Package manifest handles duet.toml run configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/duet/pkg/asm"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "duet.toml"

// Manifest represents a duet.toml configuration.
type Manifest struct {
	Run     Run     `toml:"run"`
	Log     Log     `toml:"log"`
	Journal Journal `toml:"journal"`

	// Dir is the directory containing the duet.toml file (set at load time).
	Dir string `toml:"-"`
}

// Run configures program execution.
type Run struct {
	MaxRounds  int    `toml:"max-rounds"`
	IDRegister string `toml:"id-register"`
	Trace      bool   `toml:"trace"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Journal configures the run journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no duet.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Run.IDRegister == "" {
		m.Run.IDRegister = "p"
	}
	if m.Journal.Path == "" {
		m.Journal.Path = filepath.Join(".duet", "journal.db")
	}
}

// Load parses a duet.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a duet.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks field values that TOML decoding cannot.
func (m *Manifest) Validate() error {
	if _, err := asm.ParseRegister(m.Run.IDRegister); err != nil {
		return fmt.Errorf("run.id-register: %w", err)
	}
	if m.Run.MaxRounds < 0 {
		return fmt.Errorf("run.max-rounds: must not be negative, got %d", m.Run.MaxRounds)
	}
	if m.Log.Verbosity < -4 || m.Log.Verbosity > 5 {
		return fmt.Errorf("log.verbosity: out of range: %d", m.Log.Verbosity)
	}
	return nil
}

// IDRegister returns the configured id register.
func (m *Manifest) IDRegister() asm.Register {
	r, err := asm.ParseRegister(m.Run.IDRegister)
	if err != nil {
		return 'p'
	}
	return r
}

// JournalPath returns the journal database path, resolved against the
// manifest directory when relative.
func (m *Manifest) JournalPath() string {
	if filepath.IsAbs(m.Journal.Path) || m.Dir == "" {
		return m.Journal.Path
	}
	return filepath.Join(m.Dir, m.Journal.Path)
}

// LogFile returns the log file path or nil for stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) && m.Dir != "" {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}
