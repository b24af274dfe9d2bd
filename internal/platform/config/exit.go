package config

import (
	"fmt"
	"os"
	"strings"
)

// Exitf prints a fatal message on stderr and terminates with status 1.
func Exitf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	fmt.Fprint(os.Stderr, message)
	os.Exit(1)
}
