package gitcmd

import (
	"fmt"
	"regexp"
	"strings"
)

// URL schemes the engine can build clone URLs for.
const (
	SchemeSSH   = "ssh"
	SchemeHTTPS = "https"
)

// CloneURL builds the remote URL for a scheme:
// ssh   → git@host:owner/repo.git
// https → https://host/owner/repo.git
func CloneURL(scheme, host, owner, repo string) string {
	if scheme == SchemeSSH {
		return fmt.Sprintf("git@%s:%s/%s.git", host, owner, repo)
	}
	return fmt.Sprintf("https://%s/%s/%s.git", host, owner, repo)
}

// SchemeChain returns the protocol fallback order starting with the
// preferred scheme. Trying the alternate captures a missing SSH key or
// a blocked HTTPS endpoint.
func SchemeChain(preferred string) []string {
	if preferred == SchemeSSH {
		return []string{SchemeSSH, SchemeHTTPS}
	}
	return []string{SchemeHTTPS, SchemeSSH}
}

// ownerRepoRegex matches the trailing owner/repo of SSH and HTTPS
// remote URLs (git@host:owner/repo.git, https://host/owner/repo).
var ownerRepoRegex = regexp.MustCompile(`[:/]([^/:]+)/([^/:]+?)(\.git)?/?$`)

// OwnerRepoFromURL extracts owner and repository name from a remote URL.
func OwnerRepoFromURL(url string) (owner, repo string, err error) {
	matches := ownerRepoRegex.FindStringSubmatch(strings.TrimSpace(url))
	if len(matches) < 3 || matches[1] == "" || matches[2] == "" {
		return "", "", fmt.Errorf("unsupported git URL format: %s", url)
	}
	return matches[1], matches[2], nil
}
