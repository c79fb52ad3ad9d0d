package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
)

func newTokensCmd(a *app) *cobra.Command {
	var model, provider string
	cmd := &cobra.Command{
		Use:   "tokens [file|-]",
		Short: "Count prompt tokens for a request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := parseAPI("provider", provider)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			c, err := a.engine.Codec(api)
			if err != nil {
				return err
			}
			req, err := c.DecodeRequest(data)
			if err != nil {
				return err
			}
			if model != "" {
				req.Model = model
			}
			count, err := a.engine.Count(cmd.Context(), domain.NewTokenView(req))
			if err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("#", "ROLE", "TOKENS")
			for i, n := range count.PerMessage {
				table.AddRow(i, req.Messages[i].Role, n)
			}
			if count.Tools > 0 {
				table.AddRow("", "tools", count.Tools)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)

			total := strconv.Itoa(count.Total)
			if count.Estimated {
				total += " (estimated)"
			}
			color.New(color.FgCyan).Fprintf(cmd.OutOrStdout(), "%s: %s tokens\n", count.Model, total)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "count as this model instead of the request's")
	cmd.Flags().StringVar(&provider, "provider", "openai", "request shape")
	return cmd
}

func newPriceCmd(a *app) *cobra.Command {
	var model string
	var prompt, completion int
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Estimate the USD cost of a model call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if model == "" {
				return fmt.Errorf("--model is required")
			}
			usage := domain.Usage{
				PromptTokens:     prompt,
				CompletionTokens: completion,
				TotalTokens:      prompt + completion,
			}
			cost := a.engine.Price(model, usage)

			table := uitable.New()
			table.RightAlign(0)
			table.Separator = " "
			table.AddRow("model:", model)
			table.AddRow("prompt tokens:", prompt)
			table.AddRow("completion tokens:", completion)
			table.AddRow("cost (USD):", fmt.Sprintf("%.6f", cost))
			fmt.Fprintln(cmd.OutOrStdout(), table)
			if cost == 0 {
				color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "no price known for %s\n", model)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model name")
	cmd.Flags().IntVar(&prompt, "prompt", 0, "prompt tokens")
	cmd.Flags().IntVar(&completion, "completion", 0, "completion tokens")
	return cmd
}
