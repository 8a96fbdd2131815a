package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/hazyhaar/docsvault/docerr"
)

// QueryLibraryVersions groups chunks by (library, version) and summarizes
// each group, per §4.6.5. Within a library, the empty-string ("unversioned")
// entry sorts first, then valid semver versions ascending; non-semver
// strings sort after all valid ones, by raw string order.
func (s *Store) QueryLibraryVersions(ctx context.Context) (map[string][]VersionDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.name, d.version, COUNT(*), COUNT(DISTINCT d.url), MIN(d.indexed_at)
		FROM documents d
		JOIN libraries l ON l.id = d.library_id
		GROUP BY l.name, d.version`)
	if err != nil {
		return nil, fmt.Errorf("store: query library versions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]VersionDetail)
	for rows.Next() {
		var lib, ver string
		var docCount, urlCount int
		var minIndexed int64
		if err := rows.Scan(&lib, &ver, &docCount, &urlCount, &minIndexed); err != nil {
			return nil, err
		}
		out[lib] = append(out[lib], VersionDetail{
			Version:        ver,
			DocumentCount:  docCount,
			UniqueURLCount: urlCount,
			IndexedAt:      time.Unix(minIndexed, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for lib := range out {
		sortVersionDetails(out[lib])
	}
	return out, nil
}

func sortVersionDetails(vs []VersionDetail) {
	sort.Slice(vs, func(i, j int) bool {
		a, b := vs[i].Version, vs[j].Version
		if a == "" {
			return b != ""
		}
		if b == "" {
			return false
		}
		av, aerr := semver.NewVersion(a)
		bv, berr := semver.NewVersion(b)
		switch {
		case aerr == nil && berr == nil:
			return av.LessThan(bv)
		case aerr == nil:
			return true // valid sorts before invalid
		case berr == nil:
			return false
		default:
			return a < b // both invalid: raw string order
		}
	})
}

// targetPattern matches a bare major, major.minor, major.x, or
// major.x.x partial version spec, per §4.6.6.
var targetPattern = regexp.MustCompile(`^(\d+)(\.(?:x(\.x)?|\d+(\.(x|\d+))?))?$`)

// VersionNotFoundError reports best-version resolution finding no
// satisfying version, carrying the indexed versions as a suggestion list
// per §7's "returned in-band with a suggestion field" rule.
type VersionNotFoundError struct {
	Library   string
	Available []string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("store: no version of %q satisfies the request (available: %s)",
		e.Library, strings.Join(e.Available, ", "))
}

func (e *VersionNotFoundError) Unwrap() error { return docerr.ErrVersionNotFound }

// FindBestVersion resolves target (possibly "", "latest", a full semver,
// or a partial like "5" / "1.1") against the versions indexed for
// library, per §4.6.6.
func (s *Store) FindBestVersion(ctx context.Context, library, target string) (string, error) {
	library = strings.ToLower(strings.TrimSpace(library))
	target = strings.TrimSpace(target)

	versions, err := s.indexedSemverVersions(ctx, library)
	if err != nil {
		return "", err
	}

	if target == "" || target == "latest" {
		if len(versions) == 0 {
			return "", &VersionNotFoundError{Library: library, Available: rawVersions(versions)}
		}
		return versions[len(versions)-1].Original(), nil
	}

	if !targetPattern.MatchString(target) {
		return "", fmt.Errorf("%w: %q", docerr.ErrInvalidVersion, target)
	}

	var constraintExpr string
	if _, err := semver.NewVersion(target); err == nil && isFullSemver(target) {
		constraintExpr = target + " || <=" + target
	} else {
		constraintExpr = "~" + target
	}

	constraint, err := semver.NewConstraint(constraintExpr)
	if err != nil {
		return "", fmt.Errorf("%w: %q", docerr.ErrInvalidVersion, target)
	}

	var best *semver.Version
	for _, v := range versions {
		if !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if best == nil {
		return "", &VersionNotFoundError{Library: library, Available: rawVersions(versions)}
	}
	return best.Original(), nil
}

// isFullSemver reports whether target has three dot-separated numeric
// components (a "full" semver, as opposed to a bare major or major.minor
// partial).
func isFullSemver(target string) bool {
	return strings.Count(target, ".") >= 2
}

func (s *Store) indexedSemverVersions(ctx context.Context, library string) ([]*semver.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT d.version
		FROM documents d
		JOIN libraries l ON l.id = d.library_id
		WHERE l.name = ?`, library)
	if err != nil {
		return nil, fmt.Errorf("store: list indexed versions: %w", err)
	}
	defer rows.Close()

	var out []*semver.Version
	for rows.Next() {
		var ver string
		if err := rows.Scan(&ver); err != nil {
			return nil, err
		}
		if v, err := semver.NewVersion(ver); err == nil {
			out = append(out, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Sort(semver.Collection(out))
	return out, nil
}

func rawVersions(versions []*semver.Version) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.Original()
	}
	return out
}
