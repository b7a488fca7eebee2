package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/llmscan/pkg/shared/config"
)

type fakeUploader struct {
	s3manageriface.UploaderAPI
	inputs []*s3manager.UploadInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3manager.UploadOutput{Location: "https://bucket.example/" + aws.StringValue(in.Key)}, nil
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "security_vulnerabilities.json", []byte(`{"old":true}`))
	require.NoError(t, err)
	path, err := s.Save(context.Background(), "security_vulnerabilities.json", []byte(`{}`))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
	assert.Equal(t, filepath.Join(s.Folder(), "security_vulnerabilities.json"), path)
}

func TestFileStoreRejectsEscape(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "../outside.json", []byte(`{}`))
	assert.Error(t, err)
}

func TestS3StoreKey(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "report.json", "report.json"},
		{"scans/", "report.json", "scans/report.json"},
		{"/scans/demo/", "report.json", "scans/demo/report.json"},
		{"scans", "../report.json", "scans/report.json"},
	}
	for _, tt := range tests {
		s := NewS3StoreWithUploader(&fakeUploader{}, "bucket", tt.prefix, nil)
		assert.Equal(t, tt.want, s.Key(tt.name))
	}
}

func TestS3StoreSave(t *testing.T) {
	up := &fakeUploader{}
	s := NewS3StoreWithUploader(up, "bucket", "scans", nil)

	location, err := s.Save(context.Background(), "report.json", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/scans/report.json", location)
	require.Len(t, up.inputs, 1)
	assert.Equal(t, "bucket", aws.StringValue(up.inputs[0].Bucket))
	assert.Equal(t, jsonContentType, aws.StringValue(up.inputs[0].ContentType))
	assert.Equal(t, `{"a":1}`, string(up.bodies[0]))
}

func TestMultiKeepsPrimaryOnMirrorFailure(t *testing.T) {
	local, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	up := &fakeUploader{err: errors.New("access denied")}

	m := &Multi{Primary: local, Mirrors: []Store{NewS3StoreWithUploader(up, "b", "", nil)}}
	location, err := m.Save(context.Background(), "r.json", []byte(`{}`))
	assert.ErrorIs(t, err, ErrMirror)
	assert.FileExists(t, location)
}

func TestNewLocalOnly(t *testing.T) {
	cfg := config.Default()
	s, err := New(cfg, t.TempDir(), "demo", nil)
	require.NoError(t, err)
	_, ok := s.(*FileStore)
	assert.True(t, ok)
}
