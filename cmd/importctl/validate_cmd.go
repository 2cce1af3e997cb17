package main

import (
	"fmt"
	"io"
	"strings"

	"company-directory-backend/internal/services/companyimport"
	"company-directory-backend/internal/uploadflow"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newValidateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Dry-run a company file and print the validation report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := g.logger()
			session := g.session(log)
			defer session.Close()

			v, err := selectAndValidate(cmd, session, args[0])
			if err != nil {
				return err
			}
			if !v.Report.IsValid {
				return errors.New("file has no importable rows")
			}
			return nil
		},
	}
}

// selectAndValidate walks the session to Validated and prints the report.
func selectAndValidate(cmd *cobra.Command, session *uploadflow.Session, path string) (uploadflow.Validated, error) {
	st, err := session.SelectFile(path)
	if err != nil {
		return uploadflow.Validated{}, err
	}
	if idle, ok := st.(uploadflow.Idle); ok {
		return uploadflow.Validated{}, errors.New(idle.Notice)
	}

	st, err = session.Validate(cmd.Context())
	if err != nil {
		return uploadflow.Validated{}, err
	}
	switch st := st.(type) {
	case uploadflow.Failed:
		return uploadflow.Validated{}, errors.New(st.Err)
	case uploadflow.Validated:
		printReport(cmd.OutOrStdout(), st.Report)
		return st, nil
	default:
		return uploadflow.Validated{}, errors.Errorf("unexpected state %s", st.Name())
	}
}

func printReport(w io.Writer, r companyimport.ValidationReport) {
	fmt.Fprintf(w, "Rows:       %d\n", r.TotalRows)
	fmt.Fprintf(w, "Valid:      %d\n", r.ValidRows)
	fmt.Fprintf(w, "Errors:     %d\n", r.ErrorCount)
	fmt.Fprintf(w, "Duplicates: %d\n", r.Duplicates)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
	if hidden := r.ErrorCount - len(r.Errors); hidden > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", hidden)
	}
	if len(r.Preview) > 0 {
		fmt.Fprintln(w, "Preview:")
		for _, p := range r.Preview {
			fmt.Fprintf(w, "  %-21s  %s\n", p.CIN, strings.TrimSpace(p.Name))
		}
	}
}
