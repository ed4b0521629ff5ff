// Package vpath translates virtual paths rooted at "~" into Drive folder
// IDs, canonical display paths, and the mirror/remote filesystem
// projections. It is strictly read-only: resolution never creates
// intermediate folders.
package vpath

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Root is the canonical display form of the virtual root.
const Root = "~"

// ErrNotFound is returned when a path component cannot be located.
var ErrNotFound = errors.New("vpath: not found")

// ErrAboveRoot is returned when ".." would escape the virtual root.
var ErrAboveRoot = errors.New("vpath: cannot resolve above root")

// Canonicalize reduces a virtual path to its canonical display form
// "~[/name]*". cwd must itself be canonical (it comes from the shell
// record). Absolute paths starting with "/" map to "~" with the leading
// separator removed; relative paths are joined onto cwd. "." components
// are dropped and ".." pops, failing above the root.
func Canonicalize(input, cwd string) (string, error) {
	input = strings.TrimSpace(input)

	var joined string

	switch {
	case input == "" || input == Root:
		return canonicalJoin(cwdOrRoot(input, cwd))
	case strings.HasPrefix(input, Root+"/"):
		joined = input[len(Root)+1:]
	case strings.HasPrefix(input, "/"):
		joined = strings.TrimPrefix(input, "/")
	default:
		base := strings.TrimPrefix(cwd, Root)
		joined = strings.TrimPrefix(path.Join(base, input), "/")
	}

	return canonicalJoin(joined)
}

// cwdOrRoot returns the path to canonicalize for empty and "~" inputs.
func cwdOrRoot(input, cwd string) string {
	if input == "" {
		return strings.TrimPrefix(strings.TrimPrefix(cwd, Root), "/")
	}

	return ""
}

// canonicalJoin resolves "." and ".." in a root-relative component string
// and re-attaches the "~" prefix.
func canonicalJoin(rel string) (string, error) {
	if rel == "" {
		return Root, nil
	}

	var stack []string

	for _, comp := range strings.Split(rel, "/") {
		switch comp {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return "", fmt.Errorf("%w: %q", ErrAboveRoot, rel)
			}

			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, comp)
		}
	}

	if len(stack) == 0 {
		return Root, nil
	}

	return Root + "/" + strings.Join(stack, "/"), nil
}

// Split returns the root-relative components of a canonical display path.
// The root itself yields an empty slice.
func Split(display string) []string {
	rel := strings.TrimPrefix(strings.TrimPrefix(display, Root), "/")
	if rel == "" {
		return nil
	}

	return strings.Split(rel, "/")
}

// Parent returns the canonical parent of a display path and the final
// component name. The root has no parent; ok is false there.
func Parent(display string) (parent, name string, ok bool) {
	comps := Split(display)
	if len(comps) == 0 {
		return "", "", false
	}

	name = comps[len(comps)-1]
	rest := comps[:len(comps)-1]

	if len(rest) == 0 {
		return Root, name, true
	}

	return Root + "/" + strings.Join(rest, "/"), name, true
}
