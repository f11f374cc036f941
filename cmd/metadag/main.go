// metadag governs free-text decisions and records them in a hash-chained ledger.
package main

import "github.com/ppiankov/metadag/internal/cli"

func main() {
	cli.Execute()
}
