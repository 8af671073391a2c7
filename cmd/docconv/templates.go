package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/manekies/document-converter-app/internal/imaging"
	"github.com/manekies/document-converter-app/internal/template"
)

func newTemplatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage stored page templates",
	}
	cmd.AddCommand(newTemplatesCreateCmd(a), newTemplatesListCmd(a), newTemplatesDeleteCmd(a))
	return cmd
}

func newTemplatesCreateCmd(a *app) *cobra.Command {
	var (
		name        string
		description string
		fingerprint string
		image       string
		regions     []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a template from a sample image or an explicit fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rois, err := parseRegions(regions)
			if err != nil {
				return err
			}
			if fingerprint == "" && image != "" {
				data, err := os.ReadFile(image)
				if err != nil {
					return err
				}
				if fingerprint, err = imaging.FingerprintBytes(data); err != nil {
					return err
				}
			}
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			t, err := rt.Templates.Create(cmd.Context(), template.Template{
				Name:        name,
				Description: description,
				Fingerprint: fingerprint,
				Regions:     rois,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "template name")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "binary fingerprint (see docconv fingerprint)")
	cmd.Flags().StringVar(&image, "image", "", "sample page to fingerprint when --fingerprint is not given")
	cmd.Flags().StringArrayVar(&regions, "region", nil, "region of interest name=x,y,w,h (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	cmd.MarkFlagsOneRequired("fingerprint", "image")
	return cmd
}

func newTemplatesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			ts, err := rt.Templates.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tREGIONS\tFINGERPRINT")
			for _, t := range ts {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.ID, t.Name, len(t.Regions), t.Fingerprint)
			}
			return tw.Flush()
		},
	}
}

func newTemplatesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Templates.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := fmt.Fprintln(w, string(data))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
