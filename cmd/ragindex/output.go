package main

import (
	"fmt"
	"os"
)

// Output icons:
//
//	✓  success
//	✗  failure (stderr)
//	⚠  warning
//	○  skipped
//	~  neutral info

func printOK(name, msg string) { printLine(os.Stdout, "✓", name, msg) }

func printErr(name, msg string) { printLine(os.Stderr, "✗", name, msg) }

func printWarn(name, msg string) { printLine(os.Stdout, "⚠", name, msg) }

func printSkip(name, msg string) { printLine(os.Stdout, "○", name, msg) }

func printInfo(name, msg string) { printLine(os.Stdout, "~", name, msg) }

func printLine(w *os.File, icon, name, msg string) {
	if name == "" {
		fmt.Fprintf(w, "  %s  %s\n", icon, msg)
		return
	}
	fmt.Fprintf(w, "  %s  [%s] %s\n", icon, name, msg)
}
