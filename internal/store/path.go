// File: internal/store/path.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package store

import (
	"fmt"
	"strings"

	"github.com/momentics/xenstore-go/internal/xserr"
)

// DomainPath returns the absolute prefix for a domain's local tree,
// fitting in 21 bytes including the trailing NUL, per spec §6.
func DomainPath(domid uint16) string {
	return fmt.Sprintf("/local/domain/%d", domid)
}

// ConstructPath normalizes a request payload path against a domain's
// local prefix, per spec §4.3: relative paths (not starting with "/")
// are rewritten under the domain's local prefix; all paths are length
// checked against AbsPathMax (including the trailing NUL).
func ConstructPath(payload string, domid uint16) (string, error) {
	var abs string
	if strings.HasPrefix(payload, "/") {
		abs = payload
	} else {
		abs = DomainPath(domid) + "/" + payload
	}
	if len(abs)+1 > AbsPathMax {
		return "", xserr.New(xserr.CodeENOMEM, "path exceeds ABS_PATH_MAX")
	}
	return abs, nil
}

// StripDomainPrefix removes "/local/domain/<domid>/" from path if
// present, for relative-watch event reporting per spec §4.5. If path
// does not carry the prefix it is returned unchanged.
func StripDomainPrefix(path string, domid uint16) string {
	prefix := DomainPath(domid) + "/"
	if strings.HasPrefix(path, prefix) {
		return path[len(prefix):]
	}
	return path
}
