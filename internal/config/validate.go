package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.UploadDir == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateEngine() error {
	switch c.Engine.Mode {
	case ModeLocal, ModeRemote:
	default:
		return fmt.Errorf("engine.mode must be %q or %q, got %q", ModeLocal, ModeRemote, c.Engine.Mode)
	}
	switch c.Engine.Kind {
	case EngineMonolith, EngineSegment:
	default:
		return fmt.Errorf("engine.kind must be %q or %q, got %q", EngineMonolith, EngineSegment, c.Engine.Kind)
	}
	if c.Engine.Mode == ModeLocal {
		if c.Engine.ScriptPath == "" && c.Engine.Kind == EngineMonolith {
			return errors.New("engine.script_path must be set for local monolith execution")
		}
		if c.Engine.SegmentScript == "" && c.Engine.Kind == EngineSegment {
			return errors.New("engine.segment_script_path must be set for local segment execution")
		}
	}
	if c.Engine.Kind == EngineSegment {
		if c.Engine.ClusterCores <= 0 {
			return errors.New("engine.cluster_cores must be positive")
		}
		if c.Engine.SegmentSeconds <= 0 {
			return errors.New("engine.segment_seconds must be positive")
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ClaimTimeout <= 0 {
		return errors.New("workflow.claim_timeout must be positive")
	}
	if c.Workflow.ReclaimInterval <= 0 {
		return errors.New("workflow.reclaim_interval must be positive")
	}
	return nil
}
