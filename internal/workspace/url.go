package workspace

import (
	"fmt"
	"net/url"
	"strings"
)

const urlHost = "local"

// URL returns the namespace under which avatars of workspace id live.
func URL(scheme, id string) string {
	return fmt.Sprintf("%s://%s/avatar/%s/", scheme, urlHost, id)
}

// IDFromURL extracts the workspace id from a workspace or avatar URL such
// as media://local/avatar/2/card-1.
func IDFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse avatar url: %w", err)
	}
	if u.Host != urlHost {
		return "", fmt.Errorf("avatar url %q: unexpected host %q", raw, u.Host)
	}

	rest, ok := strings.CutPrefix(u.Path, "/avatar/")
	if !ok {
		return "", fmt.Errorf("avatar url %q: missing /avatar/ segment", raw)
	}

	id, _, _ := strings.Cut(rest, "/")
	if id == "" {
		return "", fmt.Errorf("avatar url %q: missing workspace id", raw)
	}
	return id, nil
}
