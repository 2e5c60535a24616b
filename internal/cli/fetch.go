package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/notabene00/yandex-weather/internal/flow"
	"github.com/notabene00/yandex-weather/internal/store"
	"github.com/notabene00/yandex-weather/internal/weather"
	"github.com/notabene00/yandex-weather/internal/yandex"

	"github.com/spf13/cobra"
)

func fetchCmd(opts *rootOptions) *cobra.Command {
	flags := &entryFlags{}

	cmd := &cobra.Command{
		Use:   "fetch [entry-id]",
		Short: "Fetch once and print the entity state as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			base := flow.UserInput{}
			uniqueID := ""
			if len(args) == 1 {
				entry, err := a.store.GetEntry(cmd.Context(), args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("entry %s: %w", args[0], flow.ErrEntryNotFound)
				}
				if err != nil {
					return err
				}
				base = flow.UserInput{
					Name:      entry.Data.Name,
					APIKey:    entry.Data.APIKey,
					Latitude:  entry.Data.Latitude,
					Longitude: entry.Data.Longitude,
				}
				uniqueID = entry.ID
			}

			input := flags.input(cmd, base)
			if input.APIKey == "" {
				return fmt.Errorf("api key: %w", flow.ErrInvalidInput)
			}
			lat, lon := a.config.Home.Latitude, a.config.Home.Longitude
			if input.Latitude != nil {
				lat = *input.Latitude
			}
			if input.Longitude != nil {
				lon = *input.Longitude
			}
			name := input.Name
			if name == "" {
				name = weather.DefaultName
			}
			if uniqueID == "" {
				uniqueID = flow.UniqueID(lat, lon)
			}

			client := yandex.NewClient(yandex.Config{
				BaseURL:   a.config.Weather.BaseURL,
				APIKey:    input.APIKey,
				Latitude:  lat,
				Longitude: lon,
				Timeout:   a.config.Weather.Timeout,
			}, a.logger)
			entity := weather.NewEntity(name, uniqueID, client, a.logger)

			if _, err := entity.Update(cmd.Context(), true); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entity.State())
		},
	}

	flags.register(cmd)
	return cmd
}
