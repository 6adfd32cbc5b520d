// Package alnstore ties together the alignment ingester, store and query
// engines behind a single configuration surface, the way the corpus's
// component packages expose an Opts struct for their entry points.
package alnstore

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/alnstore/query/full"
	"github.com/grailbio/alnstore/query/pileup"
)

// Mode selects which query engine a run uses.
type Mode int

const (
	// ModeFull runs the per-alignment query engine.
	ModeFull Mode = iota
	// ModePileup runs the per-position query engine.
	ModePileup
	// ModeBin runs the fixed-width bin aggregation engine.
	ModeBin
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModePileup:
		return "pileup"
	case ModeBin:
		return "bin"
	default:
		return "unknown"
	}
}

// Config collects every enumerated configuration value a run of this
// system's ingestion and query pipeline accepts.
type Config struct {
	Mode        Mode
	PileupMode  pileup.Mode
	BinSize     uint32
	HeightStyle full.HeightStyle

	Verify      bool
	QuitOnError bool
	MaxRecords  int
}

// DefaultConfig mirrors the original tool's defaults: full-engine output,
// covered-only pileup reporting, by_coord heights, verification off.
var DefaultConfig = Config{
	Mode:        ModeFull,
	PileupMode:  pileup.Covered,
	BinSize:     100,
	HeightStyle: full.ByCoord,
}

// Validate checks that Config's values are internally consistent for the
// selected Mode.
func (c Config) Validate() error {
	if c.Mode == ModeBin && c.BinSize == 0 {
		return errors.E("alnstore: bin size must be positive for mode=bin")
	}
	if c.MaxRecords < 0 {
		return errors.E("alnstore: max records must be non-negative")
	}
	return nil
}
