package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/llmscan/internal/findings"
	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
	"github.com/scan-io-git/llmscan/pkg/shared/retry"
)

type fakeTransport struct {
	responses []string
	failures  []error
	calls     []fakeCall
	checkErr  error
	uploadRef string
}

type fakeCall struct {
	model string
	parts []Part
}

func (f *fakeTransport) Generate(_ context.Context, model string, parts []Part) (string, error) {
	f.calls = append(f.calls, fakeCall{model: model, parts: parts})
	i := len(f.calls) - 1
	if i < len(f.failures) && f.failures[i] != nil {
		return "", f.failures[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no response scripted")
}

func (f *fakeTransport) Upload(_ context.Context, _, _ string, _ []byte) (string, error) {
	if f.uploadRef == "" {
		return "", errors.New("upload failed")
	}
	return f.uploadRef, nil
}

func (f *fakeTransport) Check(_ context.Context, _ string) error {
	return f.checkErr
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestClient(tr Transport, rec *sleepRecorder) *Client {
	return NewClient(tr, Options{
		Model:       "first",
		RefineModel: "second",
		RateLimit:   12 * time.Second,
		Retry:       retry.Policy{MaxAttempts: 4, BaseDelay: 4 * time.Second, MaxDelay: 30 * time.Second},
		Sleep:       rec.sleep,
	})
}

func TestAnalyzeRetriesThenSucceeds(t *testing.T) {
	transient := errors.New("503 service unavailable")
	tr := &fakeTransport{
		failures:  []error{transient, transient, transient, nil},
		responses: []string{"", "", "", `{"vulnerabilities": []}`},
	}
	rec := &sleepRecorder{}
	client := newTestClient(tr, rec)

	text, err := client.Analyze(context.Background(), "print(1)", "repo/app.py")
	require.NoError(t, err)
	assert.Equal(t, `{"vulnerabilities": []}`, text)
	assert.Len(t, tr.calls, 4)
	assert.Equal(t, "first", tr.calls[0].model)

	// three backoff waits followed by the rate-limit pause
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 12 * time.Second}, rec.waits)
	assert.Contains(t, tr.calls[0].parts[0].Text, "repo/app.py")
	assert.Contains(t, tr.calls[0].parts[0].Text, "print(1)")
}

func TestAnalyzeExhaustedStillPauses(t *testing.T) {
	boom := errors.New("boom")
	tr := &fakeTransport{failures: []error{boom, boom, boom, boom}}
	rec := &sleepRecorder{}
	client := newTestClient(tr, rec)

	_, err := client.Analyze(context.Background(), "x", "repo/x.py")
	require.Error(t, err)

	var analysisErr *errs.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, "repo/x.py", analysisErr.Unit)
	assert.Equal(t, 12*time.Second, rec.waits[len(rec.waits)-1])
}

func TestRefineBatchUsesRefineModelAndRepository(t *testing.T) {
	tr := &fakeTransport{responses: []string{`{}`}}
	rec := &sleepRecorder{}
	client := newTestClient(tr, rec)

	items := []BatchItem{{FilePath: "repo/a.py", Finding: findings.Validate(map[string]any{"vulnerability_name": "XSS"})}}
	_, err := client.RefineBatch(context.Background(), items, "REPO TEXT", "https://files/abc")
	require.NoError(t, err)

	require.Len(t, tr.calls, 1)
	call := tr.calls[0]
	assert.Equal(t, "second", call.model)
	require.Len(t, call.parts, 2)
	assert.Equal(t, "https://files/abc", call.parts[0].FileURI)
	assert.Contains(t, call.parts[1].Text, "REPO TEXT")
	assert.Contains(t, call.parts[1].Text, `"file_path": "repo/a.py"`)
	assert.Contains(t, call.parts[1].Text, `"finding": {`)
	assert.Equal(t, []time.Duration{12 * time.Second}, rec.waits)
}

func TestRefineFindingIsSingleAttempt(t *testing.T) {
	quota := &errs.APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}
	tr := &fakeTransport{failures: []error{quota}}
	rec := &sleepRecorder{}
	client := newTestClient(tr, rec)

	_, err := client.RefineFinding(context.Background(), BatchItem{FilePath: "repo/a.py"}, "", "")
	require.Error(t, err)
	assert.True(t, errs.IsQuotaExhausted(err))
	assert.Len(t, tr.calls, 1)
	assert.Empty(t, rec.waits)
	require.Len(t, tr.calls[0].parts, 1)
}

func TestCheckReportsConfigurationError(t *testing.T) {
	client := newTestClient(&fakeTransport{checkErr: &errs.APIError{StatusCode: 403, Message: "API key not valid"}}, &sleepRecorder{})

	err := client.Check(context.Background())
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.True(t, strings.Contains(err.Error(), "API key not valid"))

	ok := newTestClient(&fakeTransport{}, &sleepRecorder{})
	assert.NoError(t, ok.Check(context.Background()))
}

func TestUploadRepository(t *testing.T) {
	client := newTestClient(&fakeTransport{uploadRef: "https://files/xyz"}, &sleepRecorder{})
	ref, err := client.UploadRepository(context.Background(), "repo", "content")
	require.NoError(t, err)
	assert.Equal(t, "https://files/xyz", ref)

	failing := newTestClient(&fakeTransport{}, &sleepRecorder{})
	_, err = failing.UploadRepository(context.Background(), "repo", "content")
	assert.Error(t, err)
}
