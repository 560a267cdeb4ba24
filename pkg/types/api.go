package types

// LoadRequest declares and loads a bundle of resource paths.
type LoadRequest struct {
	// Resource paths to fetch in parallel.
	// example: ["https://cdn.example.com/a.js","https://cdn.example.com/a.css"]
	Paths []string `json:"paths"`
	// Optional bundle identifier. Empty means an anonymous one-off load.
	// example: app
	Bundle string `json:"bundle,omitempty" example:"app"`
	// Retries per path after the first failed attempt.
	// example: 2
	NumRetries int `json:"num_retries,omitempty" example:"2"`
	// Dispatch paths sequentially in input order instead of racing them.
	// example: false
	Sync bool `json:"sync,omitempty" example:"false"`
	// Block until the bundle settles instead of returning 202.
	// example: true
	Wait bool `json:"wait,omitempty" example:"true"`
}

// LoadResponse reports the outcome of a waited load, or its acceptance.
type LoadResponse struct {
	// Bundle identifier, if any.
	// example: app
	Bundle string `json:"bundle,omitempty" example:"app"`
	// Paths that failed to load. Empty means full success. Only set when waited.
	NotFound []string `json:"not_found,omitempty"`
	// Whether the load fully succeeded. Only meaningful when waited.
	// example: true
	OK bool `json:"ok" example:"true"`
}

// BundleStatus summarizes one declared bundle for GET /status.
type BundleStatus struct {
	// Bundle identifier.
	// example: app
	ID string `json:"id" example:"app"`
	// pending, loaded or failed.
	// example: loaded
	State BundleState `json:"state" example:"loaded"`
	// Paths that failed, when State is failed.
	NotFound []string `json:"not_found,omitempty"`
}

// StatusResponse is a read-only projection of the engine state.
type StatusResponse struct {
	// All declared bundles and their states.
	Bundles []BundleStatus `json:"bundles"`
	// Total callbacks still queued on unpublished bundles.
	// example: 0
	PendingSubscribers int `json:"pending_subscribers" example:"0"`
	// Registered keyed-config entry names.
	Keys []string `json:"keys,omitempty"`
}

// ReadyRequest waits for one or more bundles to complete.
type ReadyRequest struct {
	// Bundle identifiers to wait on.
	// example: ["vendor","app"]
	Bundles []string `json:"bundles"`
}

// ReadyResponse reports which awaited bundles failed.
type ReadyResponse struct {
	// Awaited bundles whose outcome contained failures.
	Failed []string `json:"failed,omitempty"`
	// True when no awaited bundle failed.
	// example: true
	OK bool `json:"ok" example:"true"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: bundle already declared: app
	Error string `json:"error" example:"bundle already declared: app"`
	// HTTP status code.
	// example: 409
	Code int `json:"code" example:"409"`
}
