package httpx

import (
	"net/url"
	"strings"
)

const (
	// SortDirAsc represents ascending sort direction.
	SortDirAsc = "asc"
	// SortDirDesc represents descending sort direction.
	SortDirDesc = "desc"
)

// ParseSortParam extracts the sort field and direction from URL query parameters.
// It accepts either ?sort=field:dir or ?sort=field&dir=direction.
//
// The direction is lowercased; anything other than "asc" or "desc" yields an empty dir
// and the repository falls back to its default ordering.
func ParseSortParam(q url.Values, sortKey, dirKey string) (string, string) {
	sortParam := strings.TrimSpace(q.Get(sortKey))
	dirParam := strings.ToLower(strings.TrimSpace(q.Get(dirKey)))

	if field, dir, ok := strings.Cut(sortParam, ":"); ok {
		dir = strings.ToLower(strings.TrimSpace(dir))
		if dir != SortDirAsc && dir != SortDirDesc {
			dir = ""
		}
		return strings.TrimSpace(field), dir
	}

	if dirParam == SortDirAsc || dirParam == SortDirDesc {
		return sortParam, dirParam
	}
	return sortParam, ""
}
