// ./main.go
package main

import (
	"sigitm-exporter/cmd"
)

// main is the entry point for the exporter.
func main() {
	cmd.Execute()
}
