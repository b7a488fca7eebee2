// Package oracle is the capability boundary around the external analysis service.
package oracle

import "context"

// Part is one element of a multi-part prompt: either text or a reference to
// a previously uploaded file.
type Part struct {
	Text     string
	FileURI  string
	MIMEType string
}

// TextPart wraps s as a prompt part.
func TextPart(s string) Part {
	return Part{Text: s}
}

// FilePart references an uploaded file by URI.
func FilePart(uri, mimeType string) Part {
	return Part{FileURI: uri, MIMEType: mimeType}
}

// Transport performs single, unretried requests against the service.
type Transport interface {
	Generate(ctx context.Context, model string, parts []Part) (string, error)
	Upload(ctx context.Context, displayName, mimeType string, content []byte) (string, error)
	Check(ctx context.Context, model string) error
}
