// Package all registers every built-in store backend. Import it for its side
// effects in binaries that pick the backend from configuration.
package all

import (
	_ "github.com/JonMunkholm/csvappend/internal/store/postgres"
	_ "github.com/JonMunkholm/csvappend/internal/store/sqlite"
)
