package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/polyglot-llm-wire/internal/codec"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/stream"
)

func parseAPI(flag, value string) (domain.APIType, error) {
	api, ok := domain.ParseAPIType(value)
	if !ok {
		return "", fmt.Errorf("--%s: unknown api type %q", flag, value)
	}
	return api, nil
}

// writeJSON indents compact codec output for the terminal.
func writeJSON(cmd *cobra.Command, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		buf.Reset()
		buf.Write(data)
	}
	buf.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

func newTranscodeCmd(a *app) *cobra.Command {
	var from, to, kind string
	cmd := &cobra.Command{
		Use:   "transcode [file|-]",
		Short: "Convert a request or response between wire shapes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := parseAPI("from", from)
			if err != nil {
				return err
			}
			dst, err := parseAPI("to", to)
			if err != nil {
				return err
			}
			k, err := codec.ParseKind(kind)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			out, err := a.engine.Transcode(cmd.Context(), src, dst, k, data)
			if err != nil {
				return err
			}
			return writeJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&from, "from", "openai", "source shape (openai, anthropic, gemini)")
	cmd.Flags().StringVar(&to, "to", "anthropic", "target shape")
	cmd.Flags().StringVar(&kind, "kind", string(codec.KindRequest), "payload kind (request, response)")
	return cmd
}

func newAssembleCmd(a *app) *cobra.Command {
	var provider, to, format string
	cmd := &cobra.Command{
		Use:   "assemble [file|-]",
		Short: "Fold a streamed response body into one complete response",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := parseAPI("provider", provider)
			if err != nil {
				return err
			}
			dst := src
			if to != "" {
				if dst, err = parseAPI("to", to); err != nil {
					return err
				}
			}
			f, err := stream.ParseFormat(format)
			if err != nil {
				return err
			}
			r, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer r.Close()

			out, err := a.engine.AssembleTo(cmd.Context(), src, dst, r, f)
			if err != nil {
				return err
			}
			return writeJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "openai", "stream shape")
	cmd.Flags().StringVar(&to, "to", "", "encode the result in this shape instead")
	cmd.Flags().StringVar(&format, "format", "sse", "stream framing (sse, ndjson, json)")
	return cmd
}
