// Command obfuscate masks PII fields in CSV, JSON or Parquet objects.
package main

import (
	"os"

	"github.com/JonMunkholm/obfuscator/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
