package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"testforge/internal/generate"
	"testforge/internal/retrieve"
)

func (p *Pipeline) caseOptions() generate.CaseOptions {
	return generate.CaseOptions{
		Count:    p.Cfg.Generation.CaseCount,
		Level:    p.Cfg.Generation.Level,
		CaseType: p.Cfg.Generation.CaseType,
	}
}

// Augment retrieves knowledge-base context for a query under the
// configured top-k and character budget.
func (p *Pipeline) Augment(ctx context.Context, query string) (*retrieve.Augmented, error) {
	return retrieve.Augment(ctx, query, p.Embedder, p.Store,
		p.Cfg.Retrieval.TopK, p.Cfg.Retrieval.ContextBudgetChars)
}

// GeneratePrompt produces the reusable generation prompt for a query.
func (p *Pipeline) GeneratePrompt(ctx context.Context, query string) (string, error) {
	aug, err := p.Augment(ctx, query)
	if err != nil {
		return "", err
	}
	return p.Engine.GeneratePrompt(ctx, query, aug.JoinedContext, p.caseOptions())
}

// GenerateCases runs prompt mode then test-case mode for a query and
// persists the accepted batch under paths.cases_dir.
func (p *Pipeline) GenerateCases(ctx context.Context, query string) ([]generate.TestCase, error) {
	aug, err := p.Augment(ctx, query)
	if err != nil {
		return nil, err
	}
	opts := p.caseOptions()
	prompt, err := p.Engine.GeneratePrompt(ctx, query, aug.JoinedContext, opts)
	if err != nil {
		return nil, err
	}
	cases, err := p.Engine.GenerateCases(ctx, prompt, aug.JoinedContext, opts)
	if err != nil {
		return nil, err
	}
	if _, _, err := generate.SaveCases(p.Cfg.Paths.CasesDir, cases); err != nil {
		return nil, err
	}
	p.logger.Info("cases generated", "query", query, "count", len(cases))
	return cases, nil
}

// LoadCases reads the last accepted batch back from paths.cases_dir.
func (p *Pipeline) LoadCases() ([]generate.TestCase, error) {
	cases, err := generate.ReadArtifact[[]generate.TestCase](p.Cfg.Paths.CasesDir, generate.CasesFilename)
	if err != nil {
		return nil, err
	}
	if cases == nil || len(*cases) == 0 {
		return nil, fmt.Errorf("no test cases in %s: generate cases first", p.Cfg.Paths.CasesDir)
	}
	return *cases, nil
}

// ScriptResult pairs one case with its generated script or the error
// that kept it from being generated.
type ScriptResult struct {
	TestCaseID string
	Script     *generate.Script
	Path       string
	Err        error
}

// GenerateScripts produces one script per case with bounded fan-out.
// The engine holds no per-request state; parallel bounds concurrent
// backend calls. Failures stay per-case.
func (p *Pipeline) GenerateScripts(ctx context.Context, cases []generate.TestCase, parallel int) []ScriptResult {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]ScriptResult, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, tc := range cases {
		g.Go(func() error {
			results[i] = p.scriptFor(gctx, tc)
			return nil
		})
	}
	_ = g.Wait() // failures live in the per-case results
	return results
}

func (p *Pipeline) scriptFor(ctx context.Context, tc generate.TestCase) ScriptResult {
	res := ScriptResult{TestCaseID: tc.ID}

	aug, err := p.Augment(ctx, tc.Title+"\n"+tc.Description)
	if err != nil {
		res.Err = err
		return res
	}
	sc, err := p.Engine.GenerateScript(ctx, tc, aug.JoinedContext, generate.ScriptOptions{
		Tool:   p.Cfg.Execute.Tool,
		Target: p.Cfg.Execute.Target,
	})
	if err != nil {
		res.Err = err
		return res
	}
	path, err := generate.SaveScript(p.Cfg.Paths.ScriptsDir, *sc)
	if err != nil {
		res.Err = err
		return res
	}
	res.Script = sc
	res.Path = path
	return res
}
