package main

import (
	"os"

	"company-directory-backend/internal/services/companyimport"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type templateOptions struct {
	XLSX   bool
	Output string
	Remote bool
}

func newTemplateCmd(g *globalOptions) *cobra.Command {
	var opts templateOptions

	cmd := &cobra.Command{
		Use:   "template [--xlsx] [-o file]",
		Short: "Write the company upload template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				data []byte
				err  error
			)
			switch {
			case opts.XLSX:
				data, err = companyimport.TemplateXLSX()
			case opts.Remote:
				data, err = g.client(g.logger()).Template(cmd.Context())
			default:
				data = companyimport.TemplateCSV()
			}
			if err != nil {
				return err
			}

			if opts.Output == "" || opts.Output == "-" {
				if opts.XLSX {
					return errors.New("--xlsx needs an output file")
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return errors.Wrap(os.WriteFile(opts.Output, data, 0o644), "write template")
		},
	}

	cmd.Flags().BoolVar(&opts.XLSX, "xlsx", false, "write an Excel workbook instead of CSV")
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "download the CSV template from the server")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	return cmd
}
