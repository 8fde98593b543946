// Package runner defines the boundary to the evaluation pipeline. The
// pipeline is opaque to the orchestrator: it receives a fully resolved
// blueprint and reports back the filename of the artifact it wrote.
package runner

import (
	"context"

	"github.com/collect-intel/dtef-app-sub001/internal/blueprint"
)

// Job is one evaluation request. Models are concrete identifiers only;
// symbolic group aliases are resolved before a job is built.
type Job struct {
	Blueprint blueprint.Blueprint `json:"blueprint"`

	// Models are the resolved concrete model identifiers to evaluate.
	Models []string `json:"models"`

	// RunLabel is the content hash of the resolved blueprint; it becomes
	// part of the artifact filename.
	RunLabel string `json:"runLabel"`

	// EvalMethods selects the evaluation methods the pipeline applies.
	EvalMethods []string `json:"evalMethods,omitempty"`

	// CommitSHA records which source commit the blueprint came from.
	CommitSHA string `json:"commitSha,omitempty"`

	// UseCache permits the pipeline to reuse cached model responses.
	UseCache bool `json:"useCache"`
}

// Runner executes one evaluation. Calls may last minutes; ctx is the only
// cancellation mechanism. On success the returned fileName names the
// artifact written under the blueprint's run prefix.
type Runner interface {
	Run(ctx context.Context, job Job) (fileName string, err error)
}

// Func adapts a plain function to the Runner interface.
type Func func(ctx context.Context, job Job) (string, error)

// Run implements Runner.
func (f Func) Run(ctx context.Context, job Job) (string, error) {
	return f(ctx, job)
}
