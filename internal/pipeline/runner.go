// Package pipeline runs a whole analysis: scan, classify, normalize, cost,
// backlog, blocker mapping and negotiation, producing one report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/debtneg/internal/backlog"
	"github.com/steveyegge/debtneg/internal/cost"
	"github.com/steveyegge/debtneg/internal/negotiation"
	"github.com/steveyegge/debtneg/internal/normalize"
	"github.com/steveyegge/debtneg/internal/report"
	"github.com/steveyegge/debtneg/internal/types"
)

// ErrNoRepositories is returned when a run names no repositories.
var ErrNoRepositories = errors.New("no repositories to analyze")

// runNamespace scopes deterministic run ids.
var runNamespace = uuid.MustParse("6f1c5e0a-8d7b-5b7e-9a35-1f0e2c4d8b91")

const tracerName = "github.com/steveyegge/debtneg/pipeline"

// Scanner captures a repository snapshot.
type Scanner interface {
	Scan(ctx context.Context, root string) (*types.RepositorySnapshot, error)
}

// Classifier turns a snapshot into raw debt findings.
type Classifier interface {
	ClassifyRepository(ctx context.Context, snap *types.RepositorySnapshot) ([]types.RawFinding, error)
}

// BlockerMapper decides which debt types block each ticket.
type BlockerMapper interface {
	MapBlockers(ctx context.Context, tickets []types.FeatureTicket, findings []types.DebtFinding) (map[string][]string, error)
}

// HealthChecker is implemented by oracles that can refuse work up front,
// e.g. with an open circuit breaker or a spent token budget.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BacklogSource loads feature tickets.
type BacklogSource interface {
	Fetch(ctx context.Context, source, token string) (backlog.Result, error)
}

// Config tunes a Runner.
type Config struct {
	// Workers bounds how many repositories are scanned and classified at once.
	Workers int
	// OracleTimeout bounds each classification and blocker-mapping call.
	OracleTimeout time.Duration
	Cost          cost.Params
}

// DefaultConfig returns 4 workers, a 3 minute oracle timeout and the default team.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		OracleTimeout: 3 * time.Minute,
		Cost:          cost.DefaultParams(),
	}
}

// Deps are the collaborators a Runner drives. Mapper may be nil.
type Deps struct {
	Scanner Scanner
	Oracle  Classifier
	Mapper  BlockerMapper
	Backlog BacklogSource
	Engine  *negotiation.Engine
}

// Runner executes analyses. It is safe for concurrent use.
type Runner struct {
	deps   Deps
	cfg    Config
	now    func() time.Time
	tracer trace.Tracer
}

// NewRunner validates the dependencies and fills zero config values with defaults.
func NewRunner(deps Deps, cfg Config) (*Runner, error) {
	if deps.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if deps.Oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if deps.Backlog == nil {
		return nil, fmt.Errorf("backlog source is required")
	}
	if deps.Engine == nil {
		engine, err := negotiation.New(negotiation.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("negotiation engine: %w", err)
		}
		deps.Engine = engine
	}

	d := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = d.Workers
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = d.OracleTimeout
	}
	if cfg.Cost == (cost.Params{}) {
		cfg.Cost = d.Cost
	}
	if err := cfg.Cost.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cost parameters: %w", err)
	}

	return &Runner{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Request is one analysis run.
type Request struct {
	Repositories []string

	BacklogSource string
	BacklogToken  string

	// Blockers, when non-nil, replaces blocker mapping by the oracle.
	Blockers map[string][]string
}

// repoResult is one repository's share of the run.
type repoResult struct {
	snap     *types.RepositorySnapshot
	findings []types.DebtFinding
	warnings []string
}

// Run performs the analysis. The only errors are an empty repository list and
// context cancellation; everything else degrades into report warnings.
func (r *Runner) Run(ctx context.Context, req Request) (*types.Report, error) {
	repos := uniquePaths(req.Repositories)
	if len(repos) == 0 {
		return nil, ErrNoRepositories
	}

	runID := r.runID(repos, req.BacklogSource)
	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("debtneg.run_id", runID),
		attribute.Int("debtneg.repositories", len(repos)),
		attribute.String("debtneg.oracle", oracleName(r.deps.Oracle)),
	))
	defer span.End()

	slog.Info("analysis started", "run_id", runID, "repositories", len(repos), "oracle", oracleName(r.deps.Oracle))

	labels := repositoryLabels(repos)
	results := make([]repoResult, len(repos))
	var fetched backlog.Result

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	g.Go(func() error {
		var err error
		fetched, err = r.fetchBacklog(gctx, req)
		return err
	})
	for i, repo := range repos {
		g.Go(func() error {
			res, err := r.analyzeRepository(gctx, repo, labels[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rep := r.assemble(ctx, runID, results, fetched, req)
	span.SetAttributes(
		attribute.Int("debtneg.findings", rep.Summary.TotalDebtItems),
		attribute.String("debtneg.recommendation", string(rep.Negotiation.OverallRecommendation)),
	)
	slog.Info("analysis complete", "run_id", runID, "headline", rep.Negotiation.Headline())
	return rep, nil
}

// analyzeRepository scans, classifies and normalizes one repository. name is
// the label the repository is reported under.
func (r *Runner) analyzeRepository(ctx context.Context, repo, name string) (repoResult, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.repository", trace.WithAttributes(
		attribute.String("debtneg.repository.path", repo),
	))
	defer span.End()

	scanCtx, scanSpan := r.tracer.Start(ctx, "pipeline.scan")
	snap, err := r.deps.Scanner.Scan(scanCtx, repo)
	scanSpan.End()
	var scanWarning string
	if err != nil {
		if ctx.Err() != nil {
			return repoResult{}, ctx.Err()
		}
		slog.Warn("scan failed", "path", repo, "error", err)
		snap = &types.RepositorySnapshot{Path: repo, RepoType: types.RepoSWE}
		scanWarning = fmt.Sprintf("%s: scan failed: %v", name, err)
	}
	snap.Name = name
	span.SetAttributes(
		attribute.String("debtneg.repository", snap.Name),
		attribute.String("debtneg.repo_type", string(snap.RepoType)),
		attribute.Int("debtneg.files", len(snap.Files)),
	)

	res := repoResult{snap: snap}
	for _, w := range snap.Warnings {
		res.warnings = append(res.warnings, fmt.Sprintf("%s: %s", name, w))
	}
	switch {
	case scanWarning != "":
		res.warnings = append(res.warnings, scanWarning)
	case snap.IsEmpty():
		res.warnings = append(res.warnings, fmt.Sprintf("%s: no files captured, repository not classified", name))
	}

	raw, err := r.classify(ctx, snap)
	var partial *types.PartialFindingsError
	switch {
	case errors.As(err, &partial):
		res.warnings = append(res.warnings, fmt.Sprintf("%s: oracle response: %v", name, err))
	case err != nil:
		if ctx.Err() != nil {
			return repoResult{}, ctx.Err()
		}
		msg := fmt.Sprintf("%s: classification failed: %v", name, err)
		res.warnings = append(res.warnings, msg)
		slog.Warn("classification failed", "repository", name, "error", err)
		span.RecordError(err)
		raw = nil
	case len(raw) == 0 && !snap.IsEmpty():
		res.warnings = append(res.warnings, fmt.Sprintf("%s: oracle returned no findings", name))
	}

	res.findings = normalize.Normalize(snap.Name, raw)
	span.SetAttributes(attribute.Int("debtneg.findings", len(res.findings)))
	slog.Debug("repository analyzed",
		"repository", snap.Name,
		"repo_type", snap.RepoType,
		"files", len(snap.Files),
		"raw_findings", len(raw),
		"findings", len(res.findings))
	return res, nil
}

func (r *Runner) classify(ctx context.Context, snap *types.RepositorySnapshot) ([]types.RawFinding, error) {
	if snap.IsEmpty() {
		return nil, nil
	}
	ctx, span := r.tracer.Start(ctx, "pipeline.classify")
	defer span.End()

	if hc, ok := r.deps.Oracle.(HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.OracleTimeout)
	defer cancel()

	raw, err := r.deps.Oracle.ClassifyRepository(ctx, snap)
	var partial *types.PartialFindingsError
	if errors.As(err, &partial) {
		span.RecordError(err)
		return raw, err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("debtneg.raw_findings", len(raw)))
	return raw, nil
}

func (r *Runner) fetchBacklog(ctx context.Context, req Request) (backlog.Result, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.backlog")
	defer span.End()

	res, err := r.deps.Backlog.Fetch(ctx, req.BacklogSource, req.BacklogToken)
	if err != nil {
		if ctx.Err() != nil {
			return backlog.Result{}, ctx.Err()
		}
		// Backlog sources are expected to fall back on their own.
		warning := fmt.Sprintf("backlog fetch failed (%v), using demo tickets", err)
		slog.Warn(warning)
		res = backlog.Result{Source: backlog.SourceDemo, Tickets: backlog.DemoTickets(), Warning: warning}
	}
	span.SetAttributes(
		attribute.String("debtneg.backlog.source", res.Source),
		attribute.Int("debtneg.backlog.tickets", len(res.Tickets)),
	)
	return res, nil
}

// mapBlockers returns the blocker mapping and an optional warning.
func (r *Runner) mapBlockers(ctx context.Context, req Request, tickets []types.FeatureTicket, findings []types.DebtFinding) (map[string][]string, string) {
	if req.Blockers != nil {
		return req.Blockers, ""
	}
	if r.deps.Mapper == nil || len(tickets) == 0 || len(findings) == 0 {
		return map[string][]string{}, ""
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.blockers")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.OracleTimeout)
	defer cancel()

	blockers, err := r.deps.Mapper.MapBlockers(ctx, tickets, findings)
	if err != nil {
		span.RecordError(err)
		slog.Warn("blocker mapping failed", "error", err)
		return map[string][]string{}, fmt.Sprintf("blocker mapping failed: %v", err)
	}
	if blockers == nil {
		blockers = map[string][]string{}
	}
	return blockers, ""
}

// assemble computes the cost models, negotiates and builds the report.
func (r *Runner) assemble(ctx context.Context, runID string, results []repoResult, fetched backlog.Result, req Request) *types.Report {
	ctx, span := r.tracer.Start(ctx, "pipeline.negotiate")
	defer span.End()

	rep := &types.Report{
		RunID:                runID,
		GeneratedAt:          r.now().UTC(),
		Repositories:         make([]string, 0, len(results)),
		RepositoriesAnalysis: make([]types.RepositoryAnalysis, 0, len(results)),
		BacklogSource:        fetched.Source,
		Features:             fetched.Tickets,
	}
	if rep.Features == nil {
		rep.Features = []types.FeatureTicket{}
	}

	sets := make([][]types.DebtFinding, 0, len(results))
	for _, res := range results {
		rep.Repositories = append(rep.Repositories, res.snap.Name)
		rep.RepositoriesAnalysis = append(rep.RepositoriesAnalysis, types.RepositoryAnalysis{
			Repository:     res.snap.Name,
			Path:           res.snap.Path,
			RepoType:       res.snap.RepoType,
			Oracle:         oracleName(r.deps.Oracle),
			FilesScanned:   len(res.snap.Files),
			TruncatedFiles: res.snap.TruncatedCount(),
			TotalBytes:     res.snap.TotalBytes,
			DebtItems:      res.findings,
			CostModel:      cost.Aggregate(res.findings, r.cfg.Cost),
			Warnings:       res.warnings,
		})
		sets = append(sets, res.findings)
		rep.Warnings = append(rep.Warnings, res.warnings...)
	}
	if fetched.Warning != "" {
		rep.Warnings = append(rep.Warnings, fetched.Warning)
	}

	portfolio := cost.AggregatePortfolio(sets, r.cfg.Cost)
	rep.Summary = types.Summary{
		TotalDebtItems:         portfolio.FindingCount,
		Critical:               portfolio.Severity.Critical,
		High:                   portfolio.Severity.High,
		Medium:                 portfolio.Severity.Medium,
		TotalAnnualCost:        portfolio.AnnualSavings,
		RefactoringEffortWeeks: portfolio.RefactoringEffortWeeks,
		RefactoringCost:        portfolio.RefactoringCost,
		BreakEvenWeeks:         portfolio.BreakEvenWeeks,
		ROIYear1Percent:        portfolio.ROIYear1Percent,
		HealthScore:            portfolio.HealthScore,
	}

	all := rep.AllFindings()
	blockers, warning := r.mapBlockers(ctx, req, rep.Features, all)
	if warning != "" {
		rep.Warnings = append(rep.Warnings, warning)
	}

	rep.Negotiation = r.deps.Engine.Negotiate(portfolio, all, rep.Features, blockers)
	rep.Recommendations = report.Recommendations(all)

	span.SetAttributes(attribute.String("debtneg.recommendation", string(rep.Negotiation.OverallRecommendation)))
	return rep
}

// runID is a UUIDv5 over the inputs, so re-running the same analysis keeps its id.
func (r *Runner) runID(repos []string, backlogSource string) string {
	parts := append([]string(nil), repos...)
	sort.Strings(parts)
	parts = append(parts,
		"backlog="+backlogSource,
		"team="+strconv.Itoa(r.cfg.Cost.TeamSize),
		"rate="+strconv.FormatFloat(r.cfg.Cost.WeeklyRate, 'f', -1, 64),
		"streams="+strconv.Itoa(r.cfg.Cost.WorkStreams),
		"oracle="+oracleName(r.deps.Oracle),
	)
	return uuid.NewSHA1(runNamespace, []byte(strings.Join(parts, "\n"))).String()
}

// repositoryLabels names each repository after its directory. Repositories that
// share a directory name get their parent prepended, and the full path is used
// when that is still ambiguous.
func repositoryLabels(paths []string) []string {
	labels := make([]string, len(paths))
	for i, p := range paths {
		labels[i] = filepath.Base(p)
	}
	widenCollisions(labels, paths, func(p string) string {
		return filepath.ToSlash(filepath.Join(filepath.Base(filepath.Dir(p)), filepath.Base(p)))
	})
	widenCollisions(labels, paths, filepath.ToSlash)
	return labels
}

// widenCollisions relabels every path whose label is shared with another.
func widenCollisions(labels, paths []string, widen func(string) string) {
	counts := make(map[string]int, len(labels))
	for _, l := range labels {
		counts[l]++
	}
	for i, p := range paths {
		if counts[labels[i]] > 1 {
			labels[i] = widen(p)
		}
	}
}

// uniquePaths cleans paths and drops blanks and repeats, keeping first-seen order.
func uniquePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}

func oracleName(c Classifier) string {
	if named, ok := c.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", c)
}
