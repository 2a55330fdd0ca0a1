package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (E001-E099)
	// ============================================

	"E001": {
		Category: CategoryRuntime,
		Message:  "Update storm: cascade budget exceeded",
		Detail:   "Subscriber callbacks kept writing to cells until the graph's cascade budget ran out. This usually means two subscribers are driving each other in a loop.",
		DocURL:   "https://lithe.dev/docs/errors/E001",
	},
	"E002": {
		Category: CategoryContract,
		Message:  "Value does not satisfy the store contract",
		Detail:   "The value passed to store.From does not expose Subscribe(func(T)) func(). Any observable value source must implement at least Subscribe.",
		DocURL:   "https://lithe.dev/docs/errors/E002",
	},
	"E003": {
		Category: CategoryRuntime,
		Message:  "Unknown store",
		Detail:   "The named store is not registered with the hub.",
		DocURL:   "https://lithe.dev/docs/errors/E003",
	},
	"E004": {
		Category: CategoryRuntime,
		Message:  "Duplicate store name",
		Detail:   "A store with this name is already registered with the hub. Store names must be unique.",
		DocURL:   "https://lithe.dev/docs/errors/E004",
	},
	"E005": {
		Category: CategoryProtocol,
		Message:  "Frame decode failed",
		Detail:   "The received frame could not be decoded. The protocol version may be mismatched.",
		DocURL:   "https://lithe.dev/docs/errors/E005",
	},
	"E006": {
		Category: CategoryProtocol,
		Message:  "Frame payload too large",
		Detail:   "The frame payload exceeds the configured maximum size.",
		DocURL:   "https://lithe.dev/docs/errors/E006",
	},
	"E007": {
		Category: CategoryRuntime,
		Message:  "Store value rejected",
		Detail:   "The submitted value could not be decoded into the store's value type.",
		DocURL:   "https://lithe.dev/docs/errors/E007",
	},
	"E008": {
		Category: CategoryRuntime,
		Message:  "Session not found",
		Detail:   "The session ID is invalid or the session has expired.",
		DocURL:   "https://lithe.dev/docs/errors/E008",
	},

	// ============================================
	// Configuration Errors (E101-E119)
	// ============================================

	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid lithe.json",
		Detail:   "The lithe.json configuration file is malformed.",
		DocURL:   "https://lithe.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range or inconsistent with other settings.",
		DocURL:   "https://lithe.dev/docs/errors/E102",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid initial store value",
		Detail:   "A configured store's initial value is not valid JSON.",
		DocURL:   "https://lithe.dev/docs/errors/E103",
	},

	// ============================================
	// Storage Errors (E201-E219)
	// ============================================

	"E201": {
		Category: CategoryStorage,
		Message:  "Snapshot backend failure",
		Detail:   "The snapshot backend returned an error while saving or loading store state.",
		DocURL:   "https://lithe.dev/docs/errors/E201",
	},
	"E202": {
		Category: CategoryStorage,
		Message:  "Unsupported snapshot backend",
		Detail:   "The configured snapshot backend name is not one of: memory, sqlite, redis, s3.",
		DocURL:   "https://lithe.dev/docs/errors/E202",
	},
	"E203": {
		Category: CategoryStorage,
		Message:  "Invalid checkpoint schedule",
		Detail:   "The checkpoint cron expression could not be parsed.",
		DocURL:   "https://lithe.dev/docs/errors/E203",
	},

	// ============================================
	// CLI Errors (E301-E319)
	// ============================================

	"E301": {
		Category: CategoryCLI,
		Message:  "Configuration file not found",
		Detail:   "No lithe.json was found at the given path.",
		DocURL:   "https://lithe.dev/docs/errors/E301",
	},
	"E302": {
		Category: CategoryCLI,
		Message:  "Snapshot not found",
		Detail:   "No snapshot exists under the given store name.",
		DocURL:   "https://lithe.dev/docs/errors/E302",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
