package main

import (
	"testforge/internal/config"
	"testforge/internal/pipeline"
)

// openPipeline loads the config named by --config and opens every
// component it points at. Callers own the returned handle and must Close.
func openPipeline() (*pipeline.Pipeline, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg)
}
