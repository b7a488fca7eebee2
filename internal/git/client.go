package git

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	crssh "golang.org/x/crypto/ssh"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/llmscan/pkg/shared/config"
	"github.com/scan-io-git/llmscan/pkg/shared/files"
)

// Client clones remote repositories for scanning.
type Client struct {
	logger  hclog.Logger
	cfg     config.GitClient
	timeout time.Duration
}

// Authenticator defines an interface for different authentication methods.
type Authenticator interface {
	SetupAuth(cfg config.GitClient, logger hclog.Logger) (transport.AuthMethod, error)
}

// SSHKeyAuthenticator provides SSH key-based authentication.
type SSHKeyAuthenticator struct{}

// SSHAgentAuthenticator provides SSH agent-based authentication.
type SSHAgentAuthenticator struct{}

// HTTPAuthenticator provides HTTP basic authentication.
type HTTPAuthenticator struct{}

// SetupAuth configures SSH key authentication.
func (s *SSHKeyAuthenticator) SetupAuth(cfg config.GitClient, logger hclog.Logger) (transport.AuthMethod, error) {
	logger.Debug("setting up SSH key authentication")

	sshKeyPath, err := files.ExpandPath(cfg.SSHKey)
	if err != nil {
		logger.Error("failed to expand SSH key path", "path", cfg.SSHKey, "error", err)
		return nil, err
	}

	auth, err := ssh.NewPublicKeysFromFile("git", sshKeyPath, cfg.SSHKeyPassword)
	if err != nil {
		logger.Error("failed to set up SSH key authentication", "error", err.Error())
		return nil, err
	}

	helper, err := hostKeyHelper(cfg, logger)
	if err != nil {
		return nil, err
	}
	auth.HostKeyCallbackHelper = helper
	return auth, nil
}

// SetupAuth configures SSH agent authentication.
func (s *SSHAgentAuthenticator) SetupAuth(cfg config.GitClient, logger hclog.Logger) (transport.AuthMethod, error) {
	logger.Debug("setting up SSH agent authentication")

	auth, err := ssh.NewSSHAgentAuth("git")
	if err != nil {
		logger.Error("failed to set up SSH agent authentication", "error", err)
		return nil, err
	}

	helper, err := hostKeyHelper(cfg, logger)
	if err != nil {
		return nil, err
	}
	auth.HostKeyCallbackHelper = helper
	return auth, nil
}

// SetupAuth configures HTTP basic authentication.
func (h *HTTPAuthenticator) SetupAuth(cfg config.GitClient, logger hclog.Logger) (transport.AuthMethod, error) {
	logger.Debug("setting up HTTP authentication")

	username := cfg.Username
	if username == "" {
		// hosting services accept any non-empty user name with a token
		username = "llmscan"
	}
	return &http.BasicAuth{
		Username: username,
		Password: cfg.Token,
	}, nil
}

// hostKeyHelper verifies against known_hosts unless insecure_host_key is set.
func hostKeyHelper(cfg config.GitClient, logger hclog.Logger) (ssh.HostKeyCallbackHelper, error) {
	if config.GetBoolValue(cfg, "InsecureHostKey", false) {
		logger.Warn("SSH host key verification is disabled")
		return ssh.HostKeyCallbackHelper{HostKeyCallback: crssh.InsecureIgnoreHostKey()}, nil
	}
	callback, err := ssh.NewKnownHostsCallback()
	if err != nil {
		return ssh.HostKeyCallbackHelper{}, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return ssh.HostKeyCallbackHelper{HostKeyCallback: callback}, nil
}

// isSSHURL reports whether cloneURL uses the SSH transport.
func isSSHURL(cloneURL string) bool {
	return strings.HasPrefix(cloneURL, "ssh://") || (strings.Contains(cloneURL, "@") && !strings.Contains(cloneURL, "://"))
}

// getAuthenticator picks an authenticator for cloneURL, or nil for anonymous access.
func getAuthenticator(cloneURL string, cfg config.GitClient) Authenticator {
	switch {
	case isSSHURL(cloneURL) && cfg.SSHKey != "":
		return &SSHKeyAuthenticator{}
	case isSSHURL(cloneURL):
		return &SSHAgentAuthenticator{}
	case cfg.Token != "":
		return &HTTPAuthenticator{}
	default:
		return nil
	}
}

// New initializes a new Git Client with the given parameters.
func New(logger hclog.Logger, cfg config.GitClient) *Client {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		logger:  logger,
		cfg:     cfg,
		timeout: config.SetThen(cfg.Timeout, config.DefaultGitTimeout),
	}
}

func (c *Client) authFor(cloneURL string) (transport.AuthMethod, error) {
	authenticator := getAuthenticator(cloneURL, c.cfg)
	if authenticator == nil {
		return nil, nil
	}
	auth, err := authenticator.SetupAuth(c.cfg, c.logger)
	if err != nil {
		c.logger.Error("failed to set up Git authentication", "error", err)
		return nil, fmt.Errorf("failed to set up Git authentication: %w", err)
	}
	return auth, nil
}
