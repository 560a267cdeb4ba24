package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// waitTimeout caps how long waiting endpoints (waited loads, /v1/ready,
// keyed loads) may block. Zero means only the request context limits them.
var waitTimeout = int64(0) // seconds

// SetWaitTimeoutSeconds sets the wait timeout in seconds (0 disables).
func SetWaitTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	waitTimeout = sec
}

// defaultNumRetries applies to load requests that omit num_retries.
var defaultNumRetries = 0

// SetDefaultNumRetries configures the per-path retry budget used when a
// request does not specify one.
func SetDefaultNumRetries(n int) {
	if n < 0 {
		n = 0
	}
	defaultNumRetries = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
