package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rafyaudit/internal/backend"
	"rafyaudit/internal/checklist"
	"rafyaudit/internal/dashboard"
	"rafyaudit/internal/models"
)

func (a *application) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email == "" {
				if email, err = a.prompt("Email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.prompt("Mot de passe"); err != nil {
					return err
				}
			}
			user, err := a.session.Login(cmd.Context(), email, password)
			if err != nil {
				if d := backend.Detail(err); d != "" {
					return errors.New(d)
				}
				return fmt.Errorf("échec de la connexion: %w", err)
			}
			fmt.Fprintf(a.out, "Bienvenue, %s\n", user.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email.")
	cmd.Flags().StringVar(&password, "password", os.Getenv("RAFYAUDIT_PASSWORD"), "Account password (default $RAFYAUDIT_PASSWORD).")
	return cmd
}

func (a *application) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := a.session.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Vous êtes déconnecté")
			return nil
		},
	}
}

func (a *application) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			u := a.session.User()
			fmt.Fprintf(a.out, "%s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
}

func (a *application) listCommand() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audits with the dashboard counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			audits, err := a.client.ListAudits(cmd.Context())
			if err != nil {
				return err
			}
			st := dashboard.Compute(audits)
			fmt.Fprintf(a.out, "Total: %d  Conformes: %d  Non conformes: %d  Taux: %d%%\n",
				st.Total, st.Conformes, st.NonConformes, st.Rate)
			shown := dashboard.Filter(audits, search)
			if len(shown) == 0 {
				if search != "" {
					fmt.Fprintf(a.out, "Aucun audit ne correspond à « %s »\n", search)
				} else {
					fmt.Fprintln(a.out, "Aucun audit pour le moment.")
				}
				return nil
			}
			return writeAudits(a.out, shown)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by commercial, location or controller.")
	return cmd
}

func writeAudits(out io.Writer, audits []models.AuditRecord) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCOMMERCIAL\tLIEU\tCONTRÔLEUR\tRÉSULTAT")
	for _, au := range audits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			au.ID, au.DateControle, au.CommercialControle, au.Lieu, au.ControleurInterne, au.ResultatGlobal)
	}
	return tw.Flush()
}

func (a *application) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one audit with its checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			au, err := a.client.GetAudit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeAudit(a.out, checklist.Default(), au)
			return nil
		},
	}
}

func writeAudit(out io.Writer, schema *checklist.Schema, au models.AuditRecord) {
	fmt.Fprintf(out, "Audit %s\n", au.ID)
	fmt.Fprintf(out, "Date: %s %s\nLieu: %s\nCommercial: %s\nContrôleur: %s\n",
		au.DateControle, au.Heure, au.Lieu, au.CommercialControle, au.ControleurInterne)
	for _, c := range schema.Categories {
		sum := schema.Summary(c, au.Checklist)
		fmt.Fprintf(out, "\n%s (%d/%d)\n", c.Name, sum.Conformes, sum.Total)
		for _, it := range c.Items {
			e := au.Checklist.Get(it.Key)
			mark := "x"
			if e.Status == checklist.Conforme {
				mark = "v"
			}
			fmt.Fprintf(out, "  [%s] %s\n", mark, it.Label)
			if e.Comment != "" {
				fmt.Fprintf(out, "      %s\n", e.Comment)
			}
		}
	}
	if au.Observations != "" {
		fmt.Fprintf(out, "\nObservations: %s\n", au.Observations)
	}
	if au.ActionsCorrectives != "" {
		fmt.Fprintf(out, "Actions correctives: %s\n", au.ActionsCorrectives)
	}
	fmt.Fprintf(out, "\nRésultat global: %s\n", au.ResultatGlobal)
}

func (a *application) pdfCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pdf <id>",
		Short: "Download the PDF report of an audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			au, err := a.client.GetAudit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pdf, err := a.client.AuditPDF(cmd.Context(), au.ID)
			if err != nil {
				return err
			}
			defer pdf.Body.Close()

			path := output
			if path == "" {
				path = dashboard.PDFFilename(au.CommercialControle, au.DateControle)
			} else if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, dashboard.PDFFilename(au.CommercialControle, au.DateControle))
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, pdf.Body); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Target file or directory.")
	return cmd
}
