package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rfxstream/catalogservice/internal/catalog"
	"rfxstream/catalogservice/internal/domain"
)

func contentTypeArg(raw string) (domain.ContentType, error) {
	ct := domain.NormalizeContentType(raw)
	if ct == "" {
		return "", fmt.Errorf("%w: %q", catalog.ErrUnknownContentType, raw)
	}
	return ct, nil
}

func completeTypes(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return lo.Map(domain.ContentTypes(), func(ct domain.ContentType, _ int) string { return string(ct) }),
		cobra.ShellCompDirectiveNoFileComp
}

func printItems(w io.Writer, items []domain.CanonicalItem) {
	for _, item := range items {
		printf(w, "%-28s %s\n", item.ID, item.Title)
	}
}

func newListCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "list TYPE",
		Short:             "Aggregate one content list across every endpoint of a tab",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := contentTypeArg(args[0])
			if err != nil {
				return err
			}
			service, err := newService(v)
			if err != nil {
				return err
			}
			response, err := service.List(cmd.Context(), domain.ListRequest{
				Type: ct,
				Tab:  lo.Must(cmd.Flags().GetString("tab")),
			})
			if err != nil {
				return err
			}
			if limit := lo.Must(cmd.Flags().GetInt("limit")); limit > 0 {
				response.Items = lo.Subset(response.Items, 0, uint(limit))
			}
			return render(v, cmd.OutOrStdout(), response, func(w io.Writer) {
				printf(w, "%s/%s: %d items from %d/%d endpoints (%s)\n",
					response.Type, response.Tab, len(response.Items),
					response.SucceededEndpoints, response.TotalEndpoints, response.Status)
				printItems(w, response.Items)
			})
		},
	}
	cmd.Flags().StringP("tab", "t", "", "Tab to aggregate (defaults to the type's default tab)")
	cmd.Flags().IntP("limit", "n", 0, "Print at most n items")
	return cmd
}

func newRandomCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "random TYPE",
		Short:             "Pick one random item with a cover",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := contentTypeArg(args[0])
			if err != nil {
				return err
			}
			service, err := newService(v)
			if err != nil {
				return err
			}
			response, err := service.Random(cmd.Context(), domain.RandomRequest{
				Type: ct,
				Tab:  lo.Must(cmd.Flags().GetString("tab")),
			})
			if err != nil {
				return err
			}
			return render(v, cmd.OutOrStdout(), response, func(w io.Writer) {
				printf(w, "%s (picked from %d)\n", response.Item.Title, response.PoolSize)
				printf(w, "id:    %s\ncover: %s\n", response.Item.ID, response.Item.Cover)
			})
		},
	}
	cmd.Flags().StringP("tab", "t", "", "Tab to draw from")
	return cmd
}

func newSuggestCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest QUERY",
		Short: "Show type-ahead suggestions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := newService(v)
			if err != nil {
				return err
			}
			response, err := service.Suggest(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return render(v, cmd.OutOrStdout(), response, func(w io.Writer) {
				for _, suggestion := range response.Suggestions {
					printf(w, "[%s] %-28s %s\n", suggestion.Type, suggestion.ID, suggestion.Title)
				}
			})
		},
	}
}

func newSearchCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search every content type that has search endpoints",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := newService(v)
			if err != nil {
				return err
			}
			response, err := service.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return render(v, cmd.OutOrStdout(), response, func(w io.Writer) {
				for _, section := range response.Sections {
					printf(w, "== %s (%d, %s)\n", section.Type, len(section.Items), section.Status)
					printItems(w, section.Items)
				}
			})
		},
	}
}

func newDetailCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:               "detail TYPE ID",
		Short:             "Resolve one item through the detail fallback chain",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := contentTypeArg(args[0])
			if err != nil {
				return err
			}
			service, err := newService(v)
			if err != nil {
				return err
			}
			response, err := service.Detail(cmd.Context(), ct, args[1])
			if err != nil {
				return err
			}
			return render(v, cmd.OutOrStdout(), response, func(w io.Writer) {
				printf(w, "%s\nid:     %s\nsource: %s\n", response.Item.Title, response.Item.ID, response.Source)
				if response.Item.Subtitle != "" {
					printf(w, "\n%s\n", response.Item.Subtitle)
				}
				if len(response.Chapters) > 0 {
					printf(w, "\n%d chapters\n", len(response.Chapters))
				}
				if len(response.Related) > 0 {
					printf(w, "\nrelated:\n")
					printItems(w, response.Related)
				}
			})
		},
	}
}

func newTabsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:               "tabs TYPE",
		Short:             "List the tabs the endpoint catalog declares for a type",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := contentTypeArg(args[0])
			if err != nil {
				return err
			}
			endpoints, err := catalog.LoadCatalog(v.GetString(keyCatalogFile))
			if err != nil {
				return err
			}
			tabs := endpoints.TabNames(ct)
			if len(tabs) == 0 {
				return fmt.Errorf("%w: %q", catalog.ErrUnknownContentType, ct)
			}
			return render(v, cmd.OutOrStdout(), tabs, func(w io.Writer) {
				for _, tab := range tabs {
					_, resolved, _ := endpoints.Tab(ct, tab)
					printf(w, "%-16s %d endpoints\n", tab, len(resolved))
				}
			})
		},
	}
}

func newProvidersCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the configured upstream providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := newService(v)
			if err != nil {
				return err
			}
			providers := service.Providers()
			return render(v, cmd.OutOrStdout(), providers, func(w io.Writer) {
				for _, info := range providers {
					state := "enabled"
					if !info.Enabled {
						state = "disabled"
					}
					printf(w, "%-10s %-8s %s\n", info.Name, state, info.BaseURL)
				}
			})
		},
	}
}
