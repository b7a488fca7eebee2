package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	errs "github.com/scan-io-git/llmscan/pkg/shared/errors"
)

const (
	apiVersion      = "v1beta"
	apiKeyHeader    = "x-goog-api-key"
	uploadURLHeader = "X-Goog-Upload-URL"
)

// GeminiTransport talks to the Gemini REST API.
type GeminiTransport struct {
	httpc   *resty.Client
	baseURL string
}

// NewGeminiTransport configures httpc for baseURL and apiKey. The client is
// expected to come from httpclient.InitializeRestyClient.
func NewGeminiTransport(httpc *resty.Client, baseURL, apiKey string) *GeminiTransport {
	baseURL = strings.TrimRight(baseURL, "/")
	httpc.SetBaseURL(baseURL)
	httpc.SetHeader(apiKeyHeader, apiKey)
	return &GeminiTransport{httpc: httpc, baseURL: baseURL}
}

type fileData struct {
	MIMEType string `json:"mime_type,omitempty"`
	FileURI  string `json:"file_uri"`
}

type contentPart struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type uploadResponse struct {
	File struct {
		Name string `json:"name"`
		URI  string `json:"uri"`
	} `json:"file"`
}

// Generate sends parts to models/{model}:generateContent and returns the
// concatenated text of the first candidate.
func (g *GeminiTransport) Generate(ctx context.Context, model string, parts []Part) (string, error) {
	req := generateRequest{Contents: []content{{Role: "user", Parts: toContentParts(parts)}}}

	var result generateResponse
	resp, err := g.httpc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErrorEnvelope{}).
		Post(fmt.Sprintf("/%s/models/%s:generateContent", apiVersion, model))
	if err != nil {
		return "", fmt.Errorf("generateContent request failed: %w", err)
	}
	if resp.IsError() {
		return "", toAPIError(resp)
	}

	if len(result.Candidates) == 0 {
		if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked: %s", errs.ErrMalformedResponse, result.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates returned", errs.ErrMalformedResponse)
	}

	var b strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty candidate (finish reason %q)", errs.ErrMalformedResponse, result.Candidates[0].FinishReason)
	}
	return b.String(), nil
}

// Upload stores content in the file service using the resumable protocol
// and returns the file URI.
func (g *GeminiTransport) Upload(ctx context.Context, displayName, mimeType string, data []byte) (string, error) {
	start, err := g.httpc.R().
		SetContext(ctx).
		SetHeader("X-Goog-Upload-Protocol", "resumable").
		SetHeader("X-Goog-Upload-Command", "start").
		SetHeader("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data))).
		SetHeader("X-Goog-Upload-Header-Content-Type", mimeType).
		SetBody(map[string]interface{}{
			"file": map[string]string{"display_name": displayName},
		}).
		SetError(&apiErrorEnvelope{}).
		Post(fmt.Sprintf("/upload/%s/files", apiVersion))
	if err != nil {
		return "", fmt.Errorf("upload start request failed: %w", err)
	}
	if start.IsError() {
		return "", toAPIError(start)
	}

	sessionURL := start.Header().Get(uploadURLHeader)
	if sessionURL == "" {
		return "", fmt.Errorf("%w: upload session URL missing", errs.ErrMalformedResponse)
	}

	var result uploadResponse
	resp, err := g.httpc.R().
		SetContext(ctx).
		SetHeader("X-Goog-Upload-Command", "upload, finalize").
		SetHeader("X-Goog-Upload-Offset", "0").
		SetHeader("Content-Type", mimeType).
		SetBody(data).
		SetResult(&result).
		SetError(&apiErrorEnvelope{}).
		Post(sessionURL)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	if resp.IsError() {
		return "", toAPIError(resp)
	}
	if result.File.URI == "" {
		return "", fmt.Errorf("%w: uploaded file has no URI", errs.ErrMalformedResponse)
	}
	return result.File.URI, nil
}

// Check fetches the model metadata to prove the key and endpoint work.
func (g *GeminiTransport) Check(ctx context.Context, model string) error {
	resp, err := g.httpc.R().
		SetContext(ctx).
		SetError(&apiErrorEnvelope{}).
		Get(fmt.Sprintf("/%s/models/%s", apiVersion, model))
	if err != nil {
		return fmt.Errorf("model lookup failed: %w", err)
	}
	if resp.IsError() {
		return toAPIError(resp)
	}
	return nil
}

func toContentParts(parts []Part) []contentPart {
	out := make([]contentPart, 0, len(parts))
	for _, p := range parts {
		if p.FileURI != "" {
			out = append(out, contentPart{FileData: &fileData{MIMEType: p.MIMEType, FileURI: p.FileURI}})
			continue
		}
		out = append(out, contentPart{Text: p.Text})
	}
	return out
}

func toAPIError(resp *resty.Response) error {
	apiErr := &errs.APIError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	if envelope, ok := resp.Error().(*apiErrorEnvelope); ok && envelope != nil {
		if envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
		}
		apiErr.Status = envelope.Error.Status
	}
	return apiErr
}
