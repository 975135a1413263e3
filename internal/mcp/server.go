// Package mcp exposes the pipeline as MCP tools over stdio so agent
// clients can drive ingestion, generation, and outcome tracking without
// shelling out to the CLI.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"testforge/internal/config"
	"testforge/internal/format"
	"testforge/internal/generate"
	"testforge/internal/logging"
	"testforge/internal/pipeline"
	"testforge/internal/report"
	"testforge/internal/retrieve"
	"testforge/internal/track"
	"testforge/internal/vecstore"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultIngestParallel bounds concurrent document ingestion when the
// caller does not ask for a specific width.
var DefaultIngestParallel = 4

// Server wraps the MCP SDK server around a single shared pipeline handle.
// All tools operate on the same knowledge base and outcome log.
type Server struct {
	MCPServer  *sdkmcp.Server
	ConfigPath string

	mu   sync.Mutex
	pipe *pipeline.Pipeline
}

// NewServer creates an MCP server with the testforge tool surface. The
// pipeline is opened lazily on the first tool call so `serve` starts
// cleanly before any knowledge base exists.
func NewServer(configPath string) *Server {
	s := &Server{ConfigPath: configPath}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "testforge", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "ingest_document",
		Description: "Ingest documents into the knowledge base: extract text, chunk, embed, store. Unsupported or unreadable files are skipped and reported per file.",
	}, s.handleIngestDocument)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "query_knowledge_base",
		Description: "Retrieve the most similar knowledge-base chunks for a query, plus the joined context string generation would receive.",
	}, s.handleQueryKnowledgeBase)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "generate_test_cases",
		Description: "Generate a validated test-case batch for a query using retrieved context. The accepted batch is persisted and replaces the previous one.",
	}, s.handleGenerateTestCases)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "generate_script",
		Description: "Generate executable scripts for the accepted test cases. Per-case failures are reported without aborting the batch.",
	}, s.handleGenerateScript)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "record_outcome",
		Description: "Append one execution outcome (PASSED, FAILED, ERROR) for a test case under a fresh attempt number. Outcomes are never edited.",
	}, s.handleRecordOutcome)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_report",
		Description: "Aggregate the outcome log into a report, optionally narrowed to one test case or one status.",
	}, s.handleGetReport)
}

// --- Tool input/output types ---

type ingestDocumentInput struct {
	Paths    []string `json:"paths" jsonschema:"document paths to ingest (txt, log, md, csv, html)"`
	Parallel int      `json:"parallel,omitempty" jsonschema:"number of parallel workers (default 4)"`
}

type ingestFileResult struct {
	Path     string `json:"path"`
	SourceID string `json:"source_id,omitempty"`
	Chunks   int    `json:"chunks"`
	Error    string `json:"error,omitempty"`
}

type ingestDocumentOutput struct {
	Ingested    int                `json:"ingested"`
	Skipped     int                `json:"skipped"`
	TotalChunks int                `json:"total_chunks"`
	Files       []ingestFileResult `json:"files"`
}

type queryKnowledgeBaseInput struct {
	Query string `json:"query" jsonschema:"natural-language query against the knowledge base"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"how many chunks to retrieve (default retrieval.top_k)"`
}

type queryKnowledgeBaseOutput struct {
	Hits    []vecstore.Hit `json:"hits"`
	Context string         `json:"context,omitempty"`
}

type generateTestCasesInput struct {
	Query string `json:"query" jsonschema:"feature, flow, or requirement to generate test cases for"`
}

type generateTestCasesOutput struct {
	Cases []generate.TestCase `json:"cases"`
	Count int                 `json:"count"`
}

type generateScriptInput struct {
	TestCaseID string `json:"test_case_id,omitempty" jsonschema:"generate for one accepted case (default: every saved case)"`
	Parallel   int    `json:"parallel,omitempty" jsonschema:"number of parallel backend calls (default 1 = serial)"`
}

type scriptResult struct {
	TestCaseID string `json:"test_case_id"`
	Tool       string `json:"tool,omitempty"`
	Path       string `json:"path,omitempty"`
	Error      string `json:"error,omitempty"`
}

type generateScriptOutput struct {
	Scripts []scriptResult `json:"scripts"`
	Failed  int            `json:"failed"`
}

type recordOutcomeInput struct {
	TestCaseID   string   `json:"test_case_id" jsonschema:"test case the outcome belongs to (e.g. TC_001)"`
	Status       string   `json:"status" jsonschema:"verdict: PASSED, FAILED, or ERROR"`
	ErrorMessage string   `json:"error_message,omitempty" jsonschema:"failure or error detail"`
	ArtifactRefs []string `json:"artifact_refs,omitempty" jsonschema:"evidence paths (screenshots, logs)"`
}

type recordOutcomeOutput struct {
	TestCaseID string `json:"test_case_id"`
	Attempt    int    `json:"attempt"`
	Status     string `json:"status"`
	RecordedAt string `json:"recorded_at"`
}

type getReportInput struct {
	TestCaseID string `json:"test_case_id,omitempty" jsonschema:"limit the report to one test case"`
	Status     string `json:"status,omitempty" jsonschema:"limit to one status: PASSED, FAILED, or ERROR"`
}

type getReportOutput struct {
	Report   report.Report `json:"report"`
	Rendered string        `json:"rendered"`
}

// --- Tool handlers ---

func (s *Server) handleIngestDocument(ctx context.Context, _ *sdkmcp.CallToolRequest, input ingestDocumentInput) (*sdkmcp.CallToolResult, ingestDocumentOutput, error) {
	if len(input.Paths) == 0 {
		return nil, ingestDocumentOutput{}, fmt.Errorf("paths is required")
	}
	p, err := s.pipeline()
	if err != nil {
		return nil, ingestDocumentOutput{}, err
	}

	parallel := input.Parallel
	if parallel < 1 {
		parallel = DefaultIngestParallel
	}
	results, err := p.Ingest(ctx, input.Paths, parallel)
	if err != nil {
		return nil, ingestDocumentOutput{}, fmt.Errorf("ingest_document: %w", err)
	}

	out := ingestDocumentOutput{Files: make([]ingestFileResult, 0, len(results))}
	for _, r := range results {
		fr := ingestFileResult{Path: r.Path, SourceID: r.SourceID, Chunks: r.Chunks}
		if r.Err != nil {
			fr.Error = r.Err.Error()
			out.Skipped++
		} else {
			out.Ingested++
			out.TotalChunks += r.Chunks
		}
		out.Files = append(out.Files, fr)
	}

	logging.New("mcp").Info("ingest finished",
		"ingested", out.Ingested, "skipped", out.Skipped, "chunks", out.TotalChunks)
	return nil, out, nil
}

func (s *Server) handleQueryKnowledgeBase(ctx context.Context, _ *sdkmcp.CallToolRequest, input queryKnowledgeBaseInput) (*sdkmcp.CallToolResult, queryKnowledgeBaseOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, queryKnowledgeBaseOutput{}, fmt.Errorf("query is required")
	}
	p, err := s.pipeline()
	if err != nil {
		return nil, queryKnowledgeBaseOutput{}, err
	}

	k := input.TopK
	if k <= 0 {
		k = p.Cfg.Retrieval.TopK
	}
	aug, err := retrieve.Augment(ctx, input.Query, p.Embedder, p.Store, k, p.Cfg.Retrieval.ContextBudgetChars)
	if err != nil {
		return nil, queryKnowledgeBaseOutput{}, fmt.Errorf("query_knowledge_base: %w", err)
	}

	return nil, queryKnowledgeBaseOutput{
		Hits:    aug.Retrieved,
		Context: aug.JoinedContext,
	}, nil
}

func (s *Server) handleGenerateTestCases(ctx context.Context, _ *sdkmcp.CallToolRequest, input generateTestCasesInput) (*sdkmcp.CallToolResult, generateTestCasesOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, generateTestCasesOutput{}, fmt.Errorf("query is required")
	}
	p, err := s.pipeline()
	if err != nil {
		return nil, generateTestCasesOutput{}, err
	}

	cases, err := p.GenerateCases(ctx, input.Query)
	if err != nil {
		return nil, generateTestCasesOutput{}, fmt.Errorf("generate_test_cases: %w", err)
	}
	return nil, generateTestCasesOutput{Cases: cases, Count: len(cases)}, nil
}

func (s *Server) handleGenerateScript(ctx context.Context, _ *sdkmcp.CallToolRequest, input generateScriptInput) (*sdkmcp.CallToolResult, generateScriptOutput, error) {
	p, err := s.pipeline()
	if err != nil {
		return nil, generateScriptOutput{}, err
	}

	cases, err := p.LoadCases()
	if err != nil {
		return nil, generateScriptOutput{}, err
	}
	if input.TestCaseID != "" {
		var picked []generate.TestCase
		for _, tc := range cases {
			if tc.ID == input.TestCaseID {
				picked = append(picked, tc)
				break
			}
		}
		if len(picked) == 0 {
			return nil, generateScriptOutput{}, fmt.Errorf("no accepted test case with id %s", input.TestCaseID)
		}
		cases = picked
	}

	results := p.GenerateScripts(ctx, cases, input.Parallel)

	out := generateScriptOutput{Scripts: make([]scriptResult, 0, len(results))}
	for _, r := range results {
		sr := scriptResult{TestCaseID: r.TestCaseID, Path: r.Path}
		if r.Script != nil {
			sr.Tool = r.Script.Tool
		}
		if r.Err != nil {
			sr.Error = r.Err.Error()
			out.Failed++
		}
		out.Scripts = append(out.Scripts, sr)
	}
	return nil, out, nil
}

func (s *Server) handleRecordOutcome(ctx context.Context, _ *sdkmcp.CallToolRequest, input recordOutcomeInput) (*sdkmcp.CallToolResult, recordOutcomeOutput, error) {
	if strings.TrimSpace(input.TestCaseID) == "" {
		return nil, recordOutcomeOutput{}, fmt.Errorf("test_case_id is required")
	}
	status, err := track.ParseStatus(input.Status)
	if err != nil {
		return nil, recordOutcomeOutput{}, err
	}
	p, err := s.pipeline()
	if err != nil {
		return nil, recordOutcomeOutput{}, err
	}

	out := track.Outcome{
		TestCaseID:   input.TestCaseID,
		Status:       status,
		ErrorMessage: input.ErrorMessage,
		ArtifactRefs: input.ArtifactRefs,
	}
	if err := p.RecordOutcome(ctx, &out); err != nil {
		return nil, recordOutcomeOutput{}, fmt.Errorf("record_outcome: %w", err)
	}

	logging.New("mcp").Info("outcome recorded",
		"test_case_id", out.TestCaseID, "attempt", out.Attempt, "status", out.Status)
	return nil, recordOutcomeOutput{
		TestCaseID: out.TestCaseID,
		Attempt:    out.Attempt,
		Status:     string(out.Status),
		RecordedAt: out.RecordedAt,
	}, nil
}

func (s *Server) handleGetReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input getReportInput) (*sdkmcp.CallToolResult, getReportOutput, error) {
	p, err := s.pipeline()
	if err != nil {
		return nil, getReportOutput{}, err
	}

	f := track.Filter{TestCaseID: input.TestCaseID}
	if input.Status != "" {
		status, err := track.ParseStatus(input.Status)
		if err != nil {
			return nil, getReportOutput{}, err
		}
		f.Status = status
	}

	rep, err := p.Snapshot(ctx, f)
	if err != nil {
		return nil, getReportOutput{}, fmt.Errorf("get_report: %w", err)
	}

	return nil, getReportOutput{
		Report:   rep,
		Rendered: report.RenderTable(rep, format.ASCII),
	}, nil
}

// pipeline returns the shared handle, opening store, tracker, and backend
// client from the config file on first use.
func (s *Server) pipeline() (*pipeline.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipe != nil {
		return s.pipe, nil
	}
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open pipeline: %w", err)
	}
	s.pipe = p
	return p, nil
}

// Shutdown closes the pipeline handle, releasing the knowledge base and
// outcome log. A later tool call reopens them.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipe != nil {
		if err := s.pipe.Close(); err != nil {
			logging.New("mcp").Warn("close pipeline", "err", err)
		}
		s.pipe = nil
	}
}
