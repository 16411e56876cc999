package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

type exportDoc struct {
	Key      string         `json:"key" yaml:"key"`
	Variant  string         `json:"variant" yaml:"variant"`
	Email    string         `json:"email" yaml:"email"`
	Snapshot model.Snapshot `json:"snapshot" yaml:"snapshot"`
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var email, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print an account's board as JSON or YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), flags, email, format)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runExport(ctx context.Context, out io.Writer, flags *rootFlags, email, format string) error {
	format = strings.ToLower(format)
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q", format)
	}

	cfg, _, err := loadConfig(flags)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, log.New(io.Discard, "", 0))
	if err != nil {
		return err
	}
	defer a.close()

	identity, ok, err := a.auth.LookupEmail(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no account for %s", email)
	}

	key := a.schema.StorageKey(identity.ID)
	snapshot, _, err := a.store.Get(ctx, key)
	if err != nil {
		return err
	}
	return writeExport(out, format, exportDoc{
		Key:      key,
		Variant:  cfg.Variant,
		Email:    identity.Email,
		Snapshot: snapshot,
	})
}

func writeExport(out io.Writer, format string, doc exportDoc) error {
	if format == "yaml" {
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return err
		}
		return encoder.Close()
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}
