package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
	"github.com/scan-io-git/llmscan/pkg/shared/retry"
)

// RepositoryMIMEType is the content type of uploaded repository blobs.
const RepositoryMIMEType = "text/plain"

// Options configures a Client.
type Options struct {
	Model       string
	RefineModel string
	RateLimit   time.Duration
	Retry       retry.Policy
	Sleep       retry.SleepFunc
	Logger      hclog.Logger
}

// Client serializes calls to the oracle. Analyze and RefineBatch are retried
// under the retry policy and followed by the rate-limit pause, whether they
// succeeded or not. Only one call is in flight at a time.
type Client struct {
	mu          sync.Mutex
	transport   Transport
	model       string
	refineModel string
	limiter     *RateLimiter
	retry       retry.Policy
	logger      hclog.Logger
}

// NewClient wraps transport with the retry and rate-limit protocol.
func NewClient(transport Transport, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	policy := opts.Retry
	if opts.Sleep != nil {
		policy.Sleep = opts.Sleep
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	refineModel := opts.RefineModel
	if refineModel == "" {
		refineModel = opts.Model
	}

	return &Client{
		transport:   transport,
		model:       opts.Model,
		refineModel: refineModel,
		limiter:     NewRateLimiter(opts.RateLimit, opts.Sleep),
		retry:       policy,
		logger:      logger,
	}
}

// Analyze asks the oracle to review one file and returns its raw answer.
func (c *Client) Analyze(ctx context.Context, content, path string) (string, error) {
	prompt, err := renderAnalysisPrompt(path, content)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.pause(ctx)

	return c.generate(ctx, path, c.model, []Part{TextPart(prompt)})
}

// RefineBatch asks the oracle to validate a batch of findings against the
// full repository text. repoRef may be empty when nothing was uploaded.
func (c *Client) RefineBatch(ctx context.Context, items []BatchItem, repoText, repoRef string) (string, error) {
	prompt, err := renderBatchPrompt(items, repoText, repoRef)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.pause(ctx)

	unit := fmt.Sprintf("batch of %d finding(s)", len(items))
	return c.generate(ctx, unit, c.refineModel, withRepository(repoRef, prompt))
}

// RefineFinding makes a single, unretried refinement request for one finding.
// Pacing is left to the caller.
func (c *Client) RefineFinding(ctx context.Context, item BatchItem, repoText, repoRef string) (string, error) {
	prompt, err := renderFindingPrompt(item, repoText, repoRef)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	text, err := c.transport.Generate(ctx, c.refineModel, withRepository(repoRef, prompt))
	if err != nil {
		return "", fmt.Errorf("refinement of %q in %s failed: %w", item.Finding.VulnerabilityName, item.FilePath, err)
	}
	c.logger.Debug("individual refinement response", "file", item.FilePath, "bytes", len(text))
	return text, nil
}

// Check verifies that both configured models are reachable with the configured key.
func (c *Client) Check(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, model := range uniqueModels(c.model, c.refineModel) {
		if err := c.transport.Check(ctx, model); err != nil {
			return errs.NewConfigurationError("oracle", fmt.Sprintf("model %q is not reachable: %v", model, err))
		}
	}
	return nil
}

// UploadRepository stores the repository text in the oracle file store and
// returns the reference used by refinement prompts.
func (c *Client) UploadRepository(ctx context.Context, name, content string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref, err := c.transport.Upload(ctx, name, RepositoryMIMEType, []byte(content))
	if err != nil {
		return "", fmt.Errorf("failed to upload repository content: %w", err)
	}
	c.logger.Info("repository content uploaded", "name", name, "ref", ref, "bytes", len(content))
	return ref, nil
}

func (c *Client) generate(ctx context.Context, unit, model string, parts []Part) (string, error) {
	var text string
	err := c.retry.Do(ctx, unit, func(ctx context.Context, attempt int) error {
		out, err := c.transport.Generate(ctx, model, parts)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}
	c.logger.Debug("oracle response", "unit", unit, "bytes", len(text))
	return text, nil
}

// pause applies the rate limit. A cancelled context only shortens the wait.
func (c *Client) pause(ctx context.Context) {
	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Debug("rate limit pause interrupted", "error", err)
	}
}

func withRepository(repoRef, prompt string) []Part {
	if repoRef == "" {
		return []Part{TextPart(prompt)}
	}
	return []Part{FilePart(repoRef, RepositoryMIMEType), TextPart(prompt)}
}

func uniqueModels(models ...string) []string {
	seen := make(map[string]bool, len(models))
	var out []string
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
