package registry

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"webpm/internal/pmerr"
)

// supportedAlgorithms are the SRI hash algorithms npm tarballs use.
// There is no example-pack library or ecosystem package that performs SRI
// verification, and the primitive is short enough (hash, compare, done) that
// wrapping it in a dependency buys nothing — see DESIGN.md.
var supportedAlgorithms = map[string]func([]byte) []byte{
	"sha256": func(b []byte) []byte { h := sha256.Sum256(b); return h[:] },
	"sha384": func(b []byte) []byte { h := sha512.Sum384(b); return h[:] },
	"sha512": func(b []byte) []byte { h := sha512.Sum512(b); return h[:] },
}

// VerifyIntegrity checks data against an SRI string of the form
// "<algo>-<base64>", per §4.2. An invalid format or unsupported algorithm is
// treated as "skipped" (returns true, logs a warning) when strict is false,
// and fails with IntegrityError when strict is true. A hash mismatch returns
// false in non-strict mode and fails in strict mode.
func (c *Client) VerifyIntegrity(data []byte, sri string, strict bool) (bool, error) {
	return VerifyIntegrity(data, sri, strict, c.logWarn)
}

// VerifyIntegrity is the free function form, usable without a Client (e.g.
// from the package cache or the orchestrator when re-checking a cached
// entry).
func VerifyIntegrity(data []byte, sri string, strict bool, warn func(format string, args ...interface{})) (bool, error) {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}

	algo, encoded, ok := splitSRI(sri)
	if !ok {
		warn("SRI string %q is malformed", sri)
		if strict {
			return false, pmerr.New(pmerr.CodeIntegrityError, "malformed SRI string: "+sri)
		}
		return true, nil
	}

	hashFn, ok := supportedAlgorithms[algo]
	if !ok {
		warn("SRI algorithm %q is unsupported", algo)
		if strict {
			return false, pmerr.New(pmerr.CodeIntegrityError, "unsupported SRI algorithm: "+algo)
		}
		return true, nil
	}

	expected, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		warn("SRI digest for %q is not valid base64", sri)
		if strict {
			return false, pmerr.New(pmerr.CodeIntegrityError, "malformed SRI digest: "+sri)
		}
		return true, nil
	}

	actual := hashFn(data)
	match := subtle.ConstantTimeCompare(expected, actual) == 1

	if !match {
		if strict {
			return false, pmerr.New(pmerr.CodeIntegrityError, "integrity mismatch for downloaded tarball")
		}
		return false, nil
	}
	return true, nil
}

func splitSRI(sri string) (algo, digest string, ok bool) {
	idx := strings.Index(sri, "-")
	if idx <= 0 || idx == len(sri)-1 {
		return "", "", false
	}
	return sri[:idx], sri[idx+1:], true
}
