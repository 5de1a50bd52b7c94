package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagCountry string
	flagView    string
	flagLimit   int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <topic>",
	Short: "Fetch and aggregate one topic, printing JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&flagCountry, "country", "", "ISO 3166-1 alpha-2 country filter")
	resolveCmd.Flags().StringVar(&flagView, "view", "full", "output shape: sentiment, trends or full")
	resolveCmd.Flags().IntVar(&flagLimit, "limit", 10, "number of hashtags in the trends view")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.Resolve(cmd.Context(), args[0], flagCountry)
	if err != nil {
		return err
	}

	var out any
	switch flagView {
	case "sentiment":
		out = res.SentimentView()
	case "trends":
		out = res.TrendsView(flagLimit)
	case "full":
		out = res
	default:
		return fmt.Errorf("unknown view %q (valid: sentiment, trends, full)", flagView)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
