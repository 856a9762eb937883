package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DeusData/callpath-mapper/internal/httplink"
)

func newMatchCmd() *cobra.Command {
	var verb, routeVerb string
	cmd := &cobra.Command{
		Use:   "match <call-path> <route-template>",
		Short: "Check whether a call path matches a route template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, template := args[0], args[1]
			matched := httplink.Matches(path, template)
			score := 0.0
			if matched {
				score = httplink.Score(path, template, verb, routeVerb)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "call path:  %s\n", httplink.NormalizePath(path))
			fmt.Fprintf(out, "template:   %s\n", httplink.NormalizePath(template))
			fmt.Fprintf(out, "matches:    %t\n", matched)
			fmt.Fprintf(out, "confidence: %.2f (%s)\n", score, httplink.ConfidenceBand(score))
			return nil
		},
	}
	cmd.Flags().StringVar(&verb, "verb", "", "HTTP verb of the call")
	cmd.Flags().StringVar(&routeVerb, "route-verb", "", "HTTP verb of the route")
	return cmd
}
