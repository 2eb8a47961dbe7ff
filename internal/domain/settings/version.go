package settings

import (
	"strings"

	"golang.org/x/mod/semver"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
)

// Version is the framework version build scripts can require.
const Version = "0.5.0"

// normalizeVersion ensures version has "v" prefix for semver comparison.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// CheckMinimumVersion fails when the framework is older than required.
// An empty requirement always passes.
func CheckMinimumVersion(current, required string) error {
	if strings.TrimSpace(required) == "" {
		return nil
	}
	req := normalizeVersion(required)
	if !semver.IsValid(req) {
		return builderr.Configuration("invalid minimum version %q", required)
	}
	cur := normalizeVersion(current)
	if !semver.IsValid(cur) {
		return builderr.Framework("invalid framework version %q", current)
	}
	if semver.Compare(cur, req) < 0 {
		return builderr.Configuration("the build script requires version %s, this is version %s", required, current).
			WithDetails("upgrade the build framework or lower the minimum version of the script")
	}
	return nil
}
