// Package config holds the harness's enumerated configuration record
// (§9 "Context-object-like optional parameters"), the single record that
// replaces the spec's ambient options pattern, modeled on the teacher's
// pipeline.FlowOptions.
package config

// Config collects every tunable the harness's middlewares and engine
// consult. Zero values are replaced by Default()'s values by the
// assembly function (dagent/agent.New) wherever a field is left unset.
type Config struct {
	// OffloadThresholdBytes is the tool-result size above which the
	// Filesystem middleware spills the payload to /tool_outputs/<id> and
	// returns a stub (§4.D.2).
	OffloadThresholdBytes int

	// SummarizationHighWaterTokens is the cumulative token count at which
	// the Summarization middleware triggers a compaction pass (§4.D.3).
	SummarizationHighWaterTokens int

	// SummarizationLowWaterTokens is the target the compaction pass must
	// bring cumulative tokens under.
	SummarizationLowWaterTokens int

	// ParallelSubAgentLimit bounds concurrent sibling sub-agent dispatch
	// (§4.E, §5).
	ParallelSubAgentLimit int

	// ParallelToolLimit bounds concurrent pure-tool fan-out within one
	// assistant message, via errgroup.Group.SetLimit (§5).
	ParallelToolLimit int

	// ModelRetryLimit bounds exponential-backoff retries on ModelError
	// before the step fails and the run halts (§7).
	ModelRetryLimit int

	// ExecuteCapability enables the conditional `execute` tool, only
	// advertised when the active backend also supports it (§4.D.2).
	ExecuteCapability bool

	// AllowRecursiveSubAgent permits a compiled sub-agent to itself carry
	// the SubAgent middleware, enabling nested task() calls. Off by
	// default (§4.E step 2).
	AllowRecursiveSubAgent bool
}

// Default returns the harness's baseline configuration.
func Default() Config {
	return Config{
		OffloadThresholdBytes:        10_000,
		SummarizationHighWaterTokens: 170_000,
		SummarizationLowWaterTokens: 100_000,
		ParallelSubAgentLimit:        4,
		ParallelToolLimit:            4,
		ModelRetryLimit:              3,
		ExecuteCapability:            false,
		AllowRecursiveSubAgent:       false,
	}
}

// WithDefaults fills every zero-valued field of c from Default().
func (c Config) WithDefaults() Config {
	d := Default()
	if c.OffloadThresholdBytes == 0 {
		c.OffloadThresholdBytes = d.OffloadThresholdBytes
	}
	if c.SummarizationHighWaterTokens == 0 {
		c.SummarizationHighWaterTokens = d.SummarizationHighWaterTokens
	}
	if c.SummarizationLowWaterTokens == 0 {
		c.SummarizationLowWaterTokens = d.SummarizationLowWaterTokens
	}
	if c.ParallelSubAgentLimit == 0 {
		c.ParallelSubAgentLimit = d.ParallelSubAgentLimit
	}
	if c.ParallelToolLimit == 0 {
		c.ParallelToolLimit = d.ParallelToolLimit
	}
	if c.ModelRetryLimit == 0 {
		c.ModelRetryLimit = d.ModelRetryLimit
	}
	return c
}
