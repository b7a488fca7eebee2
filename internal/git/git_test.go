package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/llmscan/pkg/shared/config"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("print(1)\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("app.py")
	require.NoError(t, err)
	_, err = wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestSourceValidate(t *testing.T) {
	assert.ErrorIs(t, Source{}.Validate(), ErrNoSource)
	assert.ErrorIs(t, Source{Path: ".", URL: "https://github.com/a/b"}.Validate(), ErrAmbiguousSource)
	assert.NoError(t, Source{Path: "."}.Validate())
}

func TestOpenLocal(t *testing.T) {
	dir := initRepo(t)

	checkout, err := OpenLocal(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), checkout.Name)
	assert.False(t, checkout.Remote)
	require.NotNil(t, checkout.Revision)
	assert.Len(t, checkout.Revision.Commit, 40)
	assert.Empty(t, checkout.Revision.Subfolder)
	assert.NoError(t, checkout.Cleanup())
	assert.DirExists(t, dir)
}

func TestOpenLocalPlainDirectory(t *testing.T) {
	dir := t.TempDir()
	checkout, err := OpenLocal(dir)
	require.NoError(t, err)
	assert.Nil(t, checkout.Revision)

	_, err = OpenLocal(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestAcquireClonesFileURL(t *testing.T) {
	origin := initRepo(t)
	client := New(nil, config.GitClient{Depth: 1})

	checkout, err := client.Acquire(context.Background(), Source{URL: "file://" + filepath.ToSlash(origin)})
	if err != nil {
		t.Skipf("local clone transport unavailable: %v", err)
	}
	assert.True(t, checkout.Remote)
	assert.FileExists(t, filepath.Join(checkout.Root, "app.py"))

	require.NoError(t, checkout.Cleanup())
	assert.NoDirExists(t, checkout.Root)
}

func TestGetAuthenticator(t *testing.T) {
	assert.Nil(t, getAuthenticator("https://github.com/a/b.git", config.GitClient{}))
	assert.IsType(t, &HTTPAuthenticator{}, getAuthenticator("https://github.com/a/b.git", config.GitClient{Token: "t"}))
	assert.IsType(t, &SSHAgentAuthenticator{}, getAuthenticator("git@github.com:a/b.git", config.GitClient{}))
	assert.IsType(t, &SSHKeyAuthenticator{}, getAuthenticator("ssh://git@github.com/a/b.git", config.GitClient{SSHKey: "~/.ssh/id"}))
}

func TestBranchReference(t *testing.T) {
	assert.Equal(t, plumbing.NewBranchReferenceName("main"), branchReference("main"))
	assert.Equal(t, plumbing.ReferenceName("refs/heads/dev"), branchReference("refs/heads/dev"))
	assert.Equal(t, plumbing.ReferenceName("refs/tags/v1"), branchReference("refs/tags/v1"))
}

func TestReadRevisionFromSubfolder(t *testing.T) {
	dir := initRepo(t)
	sub := filepath.Join(dir, "pkg", "api")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	rev, err := ReadRevision(sub)
	require.NoError(t, err)
	assert.Equal(t, "pkg/api", rev.Subfolder)
	assert.Len(t, rev.Commit, 40)
	assert.NotEmpty(t, rev.Branch)
	assert.Empty(t, rev.Remote)

	_, err = ReadRevision(t.TempDir())
	assert.Error(t, err)
}

func TestRepositoryName(t *testing.T) {
	name, err := RepositoryName("https://github.com/scan-io-git/scan-io.git")
	require.NoError(t, err)
	assert.Equal(t, "scan-io", name)

	_, err = RepositoryName("not a url")
	assert.Error(t, err)
}
