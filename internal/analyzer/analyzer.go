// Package analyzer runs the first pass: one oracle call per collected file.
package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/llmscan/internal/collector"
	"github.com/scan-io-git/llmscan/internal/extract"
	"github.com/scan-io-git/llmscan/internal/findings"
)

// Oracle is the part of the oracle client the first pass needs.
type Oracle interface {
	Analyze(ctx context.Context, content, path string) (string, error)
}

// ResponseCache stores raw answers between runs.
type ResponseCache interface {
	Get(key string) (string, bool)
	Put(key, value string) error
}

// KeyFunc derives a cache key for a file.
type KeyFunc func(path, content string) string

// Analyzer drives the first pass over a list of collected files.
type Analyzer struct {
	oracle Oracle
	cache  ResponseCache
	keyFn  KeyFunc
	logger hclog.Logger
}

// Option customises an Analyzer.
type Option func(*Analyzer)

// WithCache consults cache before calling the oracle and stores fresh answers.
func WithCache(cache ResponseCache, keyFn KeyFunc) Option {
	return func(a *Analyzer) {
		a.cache = cache
		a.keyFn = keyFn
	}
}

// New creates an Analyzer.
func New(oracle Oracle, logger hclog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	a := &Analyzer{oracle: oracle, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ReportKey is the report entry name of rel within repository repoName.
func ReportKey(repoName, rel string) string {
	if repoName == "" {
		return rel
	}
	return repoName + "/" + rel
}

// Run analyses paths, relative to root, in order. A failing file is recorded
// in the report and never stops the pass. When ctx is cancelled the partial
// report is returned, summarised, together with ctx.Err().
func (a *Analyzer) Run(ctx context.Context, root, repoName string, paths []string) (*findings.Report, error) {
	report := findings.NewReport()
	defer report.Summarize()

	for i, rel := range paths {
		if err := ctx.Err(); err != nil {
			a.logger.Warn("first pass interrupted", "analysed", i, "total", len(paths))
			return report, err
		}

		key := ReportKey(repoName, rel)
		a.logger.Info("analysing file", "file", key, "progress", fmt.Sprintf("%d/%d", i+1, len(paths)))

		file, err := collector.ReadCodeFile(root, rel)
		if err != nil {
			a.logger.Error("error reading file", "file", key, "error", err)
			report.Set(key, findings.Failure(fmt.Sprintf("Failed to read file: %v", err)))
			continue
		}

		text, err := a.analyze(ctx, key, file.Content)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				a.logger.Warn("first pass interrupted", "analysed", i, "total", len(paths))
				return report, ctxErr
			}
			a.logger.Error("final error processing file", "file", key, "error", err)
			report.Set(key, findings.Failure(fmt.Sprintf("Failed to analyze: %v", err)))
			continue
		}

		report.Set(key, findings.Findings(a.parse(key, text)))
	}

	a.logger.Info("first pass completed", "files", len(paths))
	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, key, content string) (string, error) {
	var cacheKey string
	if a.cache != nil {
		cacheKey = a.keyFn(key, content)
		if text, ok := a.cache.Get(cacheKey); ok {
			a.logger.Debug("using cached oracle response", "file", key)
			return text, nil
		}
	}

	text, err := a.oracle.Analyze(ctx, content, key)
	if err != nil {
		return "", err
	}
	a.logger.Debug("raw oracle response", "file", key, "response", text)

	if a.cache != nil {
		if err := a.cache.Put(cacheKey, text); err != nil {
			a.logger.Warn("failed to cache oracle response", "file", key, "error", err)
		}
	}
	return text, nil
}

// parse turns a raw answer into validated findings. Anything unusable yields
// an empty list, never an error marker.
func (a *Analyzer) parse(key, text string) []findings.Finding {
	data, ok := extract.ExtractObject(text)
	if !ok {
		a.logger.Warn("could not extract valid JSON from response", "file", key)
		return []findings.Finding{}
	}
	raw, ok := data["vulnerabilities"]
	if !ok {
		a.logger.Warn("no 'vulnerabilities' key found in response", "file", key)
		return []findings.Finding{}
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case nil:
		items = nil
	default:
		items = []any{v}
	}

	out := make([]findings.Finding, 0, len(items))
	for _, item := range items {
		out = append(out, findings.Validate(item))
	}
	return out
}
