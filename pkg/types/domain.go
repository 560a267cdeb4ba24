package types

// BundleState is the lifecycle state of a declared bundle.
type BundleState string

const (
	BundlePending BundleState = "pending"
	BundleLoaded  BundleState = "loaded"
	BundleFailed  BundleState = "failed"
)

// KeyConfig is one declarative bundle entry. Exactly one shape is valid:
// {files}, {files, deps} or {keys}.
type KeyConfig struct {
	// Resource paths owned by this entry. A "css!" prefix or ".css" suffix
	// marks a path as a stylesheet.
	// example: ["https://cdn.example.com/app.js","css!https://cdn.example.com/app.php"]
	Files []string `json:"files,omitempty" yaml:"files,omitempty" toml:"files,omitempty"`
	// Prerequisite entry names that must each complete before Files load.
	// example: ["jquery","base-css"]
	Deps []string `json:"deps,omitempty" yaml:"deps,omitempty" toml:"deps,omitempty"`
	// Sibling entry names whose joint completion satisfies this entry.
	// Mutually exclusive with Files and Deps.
	// example: ["vendor","app"]
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty" toml:"keys,omitempty"`
}
