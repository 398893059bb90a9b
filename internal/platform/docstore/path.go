package docstore

import (
	"fmt"
	"sort"
	"strings"
)

type path struct {
	raw        string
	collection string
	key        string
	fields     []string
}

func (p path) String() string {
	parts := append([]string{p.collection, p.key}, p.fields...)
	return strings.Join(parts, "/")
}

// Join builds a slash separated path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func parsePath(raw string) (path, error) {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return path{}, fmt.Errorf("%w: %q", ErrInvalidPath, raw)
	}
	segments := strings.Split(trimmed, "/")
	if len(segments) < 2 {
		return path{}, fmt.Errorf("%w: %q needs a collection and a key", ErrInvalidPath, raw)
	}
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" || segment == "." || segment == ".." {
			return path{}, fmt.Errorf("%w: %q", ErrInvalidPath, raw)
		}
	}
	return path{raw: raw, collection: segments[0], key: segments[1], fields: segments[2:]}, nil
}

// parseUpdates validates a multi-path update and returns the paths in
// lexical order. Ancestor/descendant pairs are rejected.
func parseUpdates(updates map[string]any) ([]path, error) {
	out := make([]path, 0, len(updates))
	for raw := range updates {
		p, err := parsePath(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1].String(), out[i].String()
		if prev == cur || strings.HasPrefix(cur, prev+"/") {
			return nil, fmt.Errorf("%w: %q and %q", ErrOverlappingPaths, prev, cur)
		}
	}
	return out, nil
}
