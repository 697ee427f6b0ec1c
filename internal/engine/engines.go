package engine

import (
	"path/filepath"
	"strconv"

	"spectra/internal/config"
)

// Invocation describes one external engine run.
type Invocation struct {
	Binary string
	Args   []string
	Dir    string
	// Script, when set, must exist before launch; a missing script is
	// classified as ErrEngineNotFound instead of a spawn failure.
	Script string
}

// Engine builds analysis invocations for one local engine variant. The
// supervision contract is identical across variants; only the executable and
// argument set differ.
type Engine interface {
	Name() string
	AnalysisInvocation(inputPath, resultDir, profile string) Invocation
}

// ForConfig selects the engine variant named by the configuration.
func ForConfig(cfg *config.Config) Engine {
	if cfg.Engine.Kind == config.EngineSegment {
		return &SegmentEngine{cfg: cfg}
	}
	return &MonolithEngine{cfg: cfg}
}

// MonolithEngine runs the single-process analysis script.
type MonolithEngine struct {
	cfg *config.Config
}

func (e *MonolithEngine) Name() string { return config.EngineMonolith }

func (e *MonolithEngine) AnalysisInvocation(inputPath, resultDir, profile string) Invocation {
	eng := e.cfg.Engine
	args := []string{
		eng.ScriptPath,
		"--input", inputPath,
		"--outdir", resultDir,
		"--mode", profile,
		"--hwaccel", eng.HWAccel,
	}
	return Invocation{
		Binary: eng.Interpreter,
		Args:   args,
		Dir:    filepath.Dir(eng.ScriptPath),
		Script: eng.ScriptPath,
	}
}

// SegmentEngine runs the distributed segment-processing script, passing the
// cluster resource parameters and the segmentation window on top of the
// common argument set.
type SegmentEngine struct {
	cfg *config.Config
}

func (e *SegmentEngine) Name() string { return config.EngineSegment }

func (e *SegmentEngine) AnalysisInvocation(inputPath, resultDir, profile string) Invocation {
	eng := e.cfg.Engine
	args := []string{
		eng.SegmentScript,
		"--input", inputPath,
		"--outdir", resultDir,
		"--mode", profile,
		"--spark_master", eng.ClusterMaster,
		"--spark_driver_memory", eng.DriverMemory,
		"--spark_executor_memory", eng.ExecutorMemory,
		"--spark_cores", strconv.Itoa(eng.ClusterCores),
		"--segments", strconv.Itoa(eng.SegmentSeconds),
	}
	return Invocation{
		Binary: eng.Interpreter,
		Args:   args,
		Dir:    filepath.Dir(eng.SegmentScript),
		Script: eng.SegmentScript,
	}
}

// FixInvocation builds the remediation run: input path, desired output path,
// and the opaque fix-type identifier.
func FixInvocation(cfg *config.Config, inputPath, outputPath, fixType string) Invocation {
	eng := cfg.Engine
	args := []string{
		eng.FixScript,
		"--input", inputPath,
		"--output", outputPath,
		"--fix", fixType,
	}
	return Invocation{
		Binary: eng.Interpreter,
		Args:   args,
		Dir:    filepath.Dir(eng.FixScript),
		Script: eng.FixScript,
	}
}
