package config

const (
	defaultDataDir         = "~/.local/share/spectra"
	defaultUploadDir       = "~/.local/share/spectra/uploads"
	defaultLogDir          = "~/.local/share/spectra/logs"
	defaultAPIBind         = "127.0.0.1:8321"
	defaultLogFormat       = "auto"
	defaultLogLevel        = "info"
	defaultMode            = ModeLocal
	defaultEngineKind      = EngineMonolith
	defaultInterpreter     = "python"
	defaultScriptPath      = "main.py"
	defaultSegmentScript   = "main_spark.py"
	defaultFixScript       = "src/remediation/fix_media.py"
	defaultHWAccel         = "none"
	defaultClusterMaster   = "local[*]"
	defaultDriverMemory    = "2g"
	defaultExecutorMemory  = "2g"
	defaultClusterCores    = 4
	defaultSegmentSeconds  = 60
	defaultClaimTimeout    = 900
	defaultReclaimInterval = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			UploadDir: defaultUploadDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Engine: Engine{
			Mode:           defaultMode,
			Kind:           defaultEngineKind,
			Interpreter:    defaultInterpreter,
			ScriptPath:     defaultScriptPath,
			SegmentScript:  defaultSegmentScript,
			FixScript:      defaultFixScript,
			HWAccel:        defaultHWAccel,
			ClusterMaster:  defaultClusterMaster,
			DriverMemory:   defaultDriverMemory,
			ExecutorMemory: defaultExecutorMemory,
			ClusterCores:   defaultClusterCores,
			SegmentSeconds: defaultSegmentSeconds,
		},
		Workflow: Workflow{
			ClaimTimeout:    defaultClaimTimeout,
			ReclaimInterval: defaultReclaimInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
