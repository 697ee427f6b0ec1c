package config

import "strings"

// normalize expands user paths and canonicalizes enum-ish string fields so the
// rest of the code can compare them without re-trimming.
func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Paths.DataDir,
		&c.Paths.UploadDir,
		&c.Paths.LogDir,
	} {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	for _, field := range []*string{
		&c.Engine.ScriptPath,
		&c.Engine.SegmentScript,
		&c.Engine.FixScript,
	} {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			*field = trimmed
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Engine.Mode = strings.ToLower(strings.TrimSpace(c.Engine.Mode))
	c.Engine.Kind = strings.ToLower(strings.TrimSpace(c.Engine.Kind))
	c.Engine.Interpreter = strings.TrimSpace(c.Engine.Interpreter)
	c.Engine.HWAccel = strings.ToLower(strings.TrimSpace(c.Engine.HWAccel))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Engine.Mode == "" {
		c.Engine.Mode = defaultMode
	}
	if c.Engine.Kind == "" {
		c.Engine.Kind = defaultEngineKind
	}
	if c.Engine.Interpreter == "" {
		c.Engine.Interpreter = defaultInterpreter
	}
	if c.Engine.HWAccel == "" {
		c.Engine.HWAccel = defaultHWAccel
	}
	return nil
}
