package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/cassiomorais/tripcheckout/internal/application/checkout"
	"github.com/spf13/cobra"
)

type classifyResult struct {
	Kind     checkout.Kind `json:"kind"`
	Shape    string        `json:"shape,omitempty"`
	Token    string        `json:"token,omitempty"`
	CleanURL string        `json:"clean_url"`
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <url>",
		Short: "Show how a return URL would be classified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := classifyURL(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

func classifyURL(raw string) (classifyResult, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return classifyResult{}, fmt.Errorf("parse url: %w", err)
	}
	c := checkout.Classify(checkout.ParseSignals(u.Query()))
	res := classifyResult{
		Kind:     c.Kind,
		Shape:    string(c.Shape),
		CleanURL: checkout.StripSignals(u).String(),
	}
	if !c.Token.IsZero() {
		res.Token = c.Token.Key()
	}
	return res, nil
}
