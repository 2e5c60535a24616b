package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/notabene00/yandex-weather/internal/flow"
	"github.com/notabene00/yandex-weather/internal/models"
	"github.com/notabene00/yandex-weather/internal/store"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func entryCmd(opts *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:   "entry",
		Short: "Manage config entries",
	}

	c.AddCommand(entryAddCmd(opts))
	c.AddCommand(entryListCmd(opts))
	c.AddCommand(entryShowCmd(opts))
	c.AddCommand(entryUpdateCmd(opts))
	c.AddCommand(entryRemoveCmd(opts))
	c.AddCommand(entryExportCmd(opts))
	c.AddCommand(entryImportCmd(opts))
	return c
}

type entryFlags struct {
	name      string
	apiKey    string
	latitude  float64
	longitude float64
}

func (f *entryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "display name (default \"Yandex Weather\")")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "Yandex.Weather API key (prompted when omitted)")
	cmd.Flags().Float64Var(&f.latitude, "latitude", 0, "latitude (default home latitude)")
	cmd.Flags().Float64Var(&f.longitude, "longitude", 0, "longitude (default home longitude)")
}

// input builds the flow input, keeping base values for flags not given.
func (f *entryFlags) input(cmd *cobra.Command, base flow.UserInput) flow.UserInput {
	in := base
	if cmd.Flags().Changed("name") {
		in.Name = f.name
	}
	if cmd.Flags().Changed("api-key") {
		in.APIKey = f.apiKey
	}
	if cmd.Flags().Changed("latitude") {
		lat := f.latitude
		in.Latitude = &lat
	}
	if cmd.Flags().Changed("longitude") {
		lon := f.longitude
		in.Longitude = &lon
	}
	return in
}

func entryAddCmd(opts *rootOptions) *cobra.Command {
	flags := &entryFlags{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an entry (config wizard)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			input := flags.input(cmd, flow.UserInput{})
			if strings.TrimSpace(input.APIKey) == "" {
				key, err := prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "API key: ")
				if err != nil {
					return err
				}
				input.APIKey = key
			}

			result, err := a.flow.StepUser(cmd.Context(), &input)
			if err != nil {
				return err
			}
			entry := result.Entry
			fmt.Fprintf(cmd.OutOrStdout(), "Created entry %s (%s) at %s\n", entry.ID, entry.Title, entry.UniqueID)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func entryListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.ListEntries(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "(no entries)")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tLOCATION\tVERSION")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.ID, e.Title, e.UniqueID, e.Version)
			}
			return w.Flush()
		},
	}
}

func entryShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.store.GetEntry(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("entry %s: %w", args[0], flow.ErrEntryNotFound)
			}
			if err != nil {
				return err
			}

			entry.Data.APIKey = mask(entry.Data.APIKey)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(entry)
		},
	}
}

func entryUpdateCmd(opts *rootOptions) *cobra.Command {
	flags := &entryFlags{}

	cmd := &cobra.Command{
		Use:   "update <entry-id>",
		Short: "Change an entry's options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.store.GetEntry(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("entry %s: %w", args[0], flow.ErrEntryNotFound)
			}
			if err != nil {
				return err
			}

			input := flags.input(cmd, flow.UserInput{
				Name:      entry.Data.Name,
				APIKey:    entry.Data.APIKey,
				Latitude:  entry.Data.Latitude,
				Longitude: entry.Data.Longitude,
			})

			result, err := a.flow.StepInit(cmd.Context(), entry.ID, &input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated entry %s (version %d)\n", result.Entry.ID, result.Entry.Version)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func entryRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <entry-id>",
		Aliases: []string{"rm"},
		Short:   "Remove an entry and its history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.flow.RemoveEntry(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed entry %s\n", args[0])
			return nil
		},
	}
}

func entryExportCmd(opts *rootOptions) *cobra.Command {
	var output string
	var masked bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entries as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.ListEntries(cmd.Context())
			if err != nil {
				return err
			}
			if masked {
				for i := range entries {
					entries[i].Data.APIKey = mask(entries[i].Data.APIKey)
				}
			}

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(entries); err != nil {
				return fmt.Errorf("failed to encode entries: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&masked, "mask", false, "mask API keys")
	return cmd
}

func entryImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import entries from a YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var entries []models.Entry
			if err := yaml.Unmarshal(b, &entries); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			imported := 0
			for _, entry := range entries {
				if entry.ID == "" || entry.UniqueID == "" {
					fmt.Fprintln(out, "Skipping entry without entry_id or unique_id")
					continue
				}
				if entry.Data.APIKey == "" || entry.Data.APIKey == maskValue {
					fmt.Fprintf(out, "Skipping %s: missing API key\n", entry.ID)
					continue
				}
				if _, err := a.store.FindByUniqueID(cmd.Context(), entry.UniqueID); err == nil {
					fmt.Fprintf(out, "Skipping %s: %s already configured\n", entry.ID, entry.UniqueID)
					continue
				}
				if err := a.store.SaveEntry(cmd.Context(), entry); err != nil {
					return err
				}
				imported++
			}
			fmt.Fprintf(out, "Imported %d of %d entries\n", imported, len(entries))
			return nil
		},
	}
}

func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
