package flakeanalyticslib

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NoArgs rejects positional arguments. Empty arguments are ignored.
func NoArgs(cmd *cobra.Command, args []string) error {
	var unexpected []string
	for _, arg := range args {
		if len(arg) > 0 {
			unexpected = append(unexpected, arg)
		}
	}
	if len(unexpected) == 0 {
		return nil
	}
	return fmt.Errorf("%s takes no positional arguments, got %q", cmd.CommandPath(), unexpected)
}
