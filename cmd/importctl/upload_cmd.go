package main

import (
	"bufio"
	"fmt"
	"strings"

	"company-directory-backend/internal/uploadflow"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type uploadOptions struct {
	Yes bool
}

func newUploadCmd(g *globalOptions) *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload <file>... [--yes]",
		Short: "Validate company files, then import them one by one while following progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := g.logger()
			session := g.session(log)
			defer session.Close()

			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())
			session.OnChange(func(st uploadflow.State) {
				if up, ok := st.(uploadflow.Uploading); ok {
					p := up.Progress
					fmt.Fprintf(out, "[%3.0f%%] %-12s %s\n", p.Percentage, p.Stage, p.Message)
				}
			})

			var failed int
			for i, path := range args {
				if i > 0 {
					if err := startOver(cmd, session, g); err != nil {
						return err
					}
				}
				if err := uploadOne(cmd, session, path, opts, in); err != nil {
					if len(args) == 1 {
						return err
					}
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed++
				}
			}
			if failed > 0 {
				return errors.Errorf("%d of %d uploads failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func uploadOne(cmd *cobra.Command, session *uploadflow.Session, path string, opts uploadOptions, in *bufio.Reader) error {
	v, err := selectAndValidate(cmd, session, path)
	if err != nil {
		return err
	}
	if !v.CanUpload() {
		return uploadflow.ErrNothingToUpload
	}
	if !opts.Yes && !confirm(cmd, in, fmt.Sprintf("Import %d valid rows from %s?", v.Report.ValidRows, v.File.Name)) {
		return errors.New("aborted")
	}

	st, err := session.Upload(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch st := st.(type) {
	case uploadflow.Completed:
		if st.ImportID != "" {
			fmt.Fprintf(out, "Import %s\n", st.ImportID)
		}
		fmt.Fprintf(out, "%s\n", st.Message)
		for _, e := range st.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
		return nil
	case uploadflow.Failed:
		if st.ImportID != "" {
			return errors.Errorf("import %s: %s", st.ImportID, st.Err)
		}
		return errors.New(st.Err)
	default:
		return errors.Errorf("upload ended in state %s", st.Name())
	}
}

// startOver returns the session to Idle before the next file. A completed
// upload stays shown until the auto reset fires.
func startOver(cmd *cobra.Command, session *uploadflow.Session, g *globalOptions) error {
	if _, done := session.State().(uploadflow.Completed); done && g.ResetDelay > 0 {
		return session.WaitIdle(cmd.Context())
	}
	if _, err := session.Dispatch(uploadflow.Reset{}); err != nil {
		return errors.Wrap(err, "reset upload session")
	}
	return nil
}

func confirm(cmd *cobra.Command, in *bufio.Reader, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	answer, _ := in.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
