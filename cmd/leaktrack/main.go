// Command leaktrack runs the machine leakage inspection and repair tracker:
// the HTTP API plus maintenance and reporting subcommands.
//
//	@title						Leaktrack API
//	@version					1.0
//	@description				Machine leakage inspection and repair tracking.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer JWT. In dev mode (no AUTH_JWT_SECRET) send X-User-ID instead.
package main

import (
	"fmt"
	"os"

	_ "time/tzdata" // REPORT_TIMEZONE must resolve on minimal images
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "leaktrack:", err)
		os.Exit(1)
	}
}
