// Package updater checks GitHub for a newer lazyops release.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Version is the running build's version, overridable at link time.
var Version = "0.1.0"

// releaseURL is a var so tests can point it at a local server.
var releaseURL = "https://api.github.com/repos/GappelSolutions/lazyops/releases/latest"

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Check queries GitHub for the latest release. It returns the newer
// version tag and its URL, or empty strings when already up to date.
// The request is bounded so a slow network cannot stall startup.
func Check(ctx context.Context) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseURL, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("github api returned status: %s", resp.Status)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", "", err
	}

	if compareVersions(rel.TagName, Version) > 0 {
		return rel.TagName, rel.HTMLURL, nil
	}
	return "", "", nil
}

// compareVersions compares dotted version strings segment by segment,
// so "0.10.0" sorts after "0.2.0". Returns 1, -1, or 0.
func compareVersions(v1, v2 string) int {
	a := strings.Split(strings.TrimPrefix(v1, "v"), ".")
	b := strings.Split(strings.TrimPrefix(v2, "v"), ".")
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x, _ = strconv.Atoi(a[i])
		}
		if i < len(b) {
			y, _ = strconv.Atoi(b[i])
		}
		if x != y {
			if x > y {
				return 1
			}
			return -1
		}
	}
	return 0
}
