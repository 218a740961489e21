package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (tree not found, invalid labsite.yml, index not built)
	ExitDataError   = 3 // Data error (malformed input, issues found under --strict)
	ExitOwnership   = 4 // Change touches files outside one contributor's
)
