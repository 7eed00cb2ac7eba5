package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rfxstream/catalogservice/internal/library"
)

func openLibrary(v *viper.Viper) (*library.Store, error) {
	return library.Open(library.NewFilePersister(nil, v.GetString(keyLibraryPath)))
}

func printHistory(w io.Writer, entries []library.HistoryEntry) {
	for _, entry := range entries {
		percent := 0.0
		if entry.Duration > 0 {
			percent = entry.Progress / entry.Duration * 100
		}
		episode := ""
		if entry.EpisodeID != "" {
			episode = " ep " + entry.EpisodeID
		}
		printf(w, "%-28s %s%s (%.0f%%)\n", entry.ID, entry.Title, episode, percent)
	}
}

func newLibraryCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect the local favorites and watch history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "favorites",
		Short: "List favorites, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openLibrary(v)
			if err != nil {
				return err
			}
			favorites := store.Favorites()
			return render(v, cmd.OutOrStdout(), favorites, func(w io.Writer) {
				for _, fav := range favorites {
					printf(w, "%-28s [%s] %s\n", fav.ID, fav.Type, fav.Title)
				}
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "continue",
		Short: "List started but unfinished entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openLibrary(v)
			if err != nil {
				return err
			}
			entries := store.ContinueWatching()
			return render(v, cmd.OutOrStdout(), entries, func(w io.Writer) {
				printHistory(w, entries)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "recent",
		Short: "List the most recently watched entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openLibrary(v)
			if err != nil {
				return err
			}
			entries := store.RecentlyWatched()
			return render(v, cmd.OutOrStdout(), entries, func(w io.Writer) {
				printHistory(w, entries)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search QUERY",
		Short: "Fuzzy search favorites and history titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLibrary(v)
			if err != nil {
				return err
			}
			result := store.Search(strings.Join(args, " "))
			return render(v, cmd.OutOrStdout(), result, func(w io.Writer) {
				for _, fav := range result.Favorites {
					printf(w, "favorite %-28s %s\n", fav.ID, fav.Title)
				}
				for _, entry := range result.History {
					printf(w, "history  %-28s %s\n", entry.ID, entry.Title)
				}
			})
		},
	})

	return cmd
}
