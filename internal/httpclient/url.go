package httpclient

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

// BuildURL validates raw as an absolute http(s) URL and, for GET requests,
// appends every non-empty param to its query string in key order. The
// existing query is kept as written. Other methods get raw back unchanged.
func BuildURL(raw string, method domain.Method, params map[string]string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q must start with http:// or https://", apperrors.ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", apperrors.ErrInvalidURL, raw)
	}

	if method != domain.MethodGet || len(params) == 0 {
		return raw, nil
	}

	var pairs []string
	for _, key := range slices.Sorted(maps.Keys(params)) {
		value := params[key]
		if value == "" {
			continue
		}
		pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}
	if len(pairs) == 0 {
		return raw, nil
	}

	query := strings.Join(pairs, "&")
	if u.RawQuery != "" {
		query = u.RawQuery + "&" + query
	}
	u.RawQuery = query
	return u.String(), nil
}
