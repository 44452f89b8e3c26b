package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iconidentify/seriesgrab/internal/config"
	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/pkg/apiclient"
)

// apiClient builds a control API client from flags, falling back to the
// config file for whatever the flags leave out.
func (o *globalOptions) apiClient() (*apiclient.Client, error) {
	baseURL, key := o.apiURL, o.apiKey
	if baseURL == "" || key == "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		if baseURL == "" {
			baseURL = "http://" + cfg.Server.Address()
		}
		if key == "" {
			key = cfg.Server.APIKey
		}
	}
	return apiclient.NewClient(baseURL, key), nil
}

func newDownloadCmd(opts *globalOptions) *cobra.Command {
	var (
		req                domain.DownloadRequest
		season, episode    string
		seasonName, epName string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Queue a movie or episode download",
		Example: `  seriesgrab download --media 42 --title "Show" --voice 56 --voice-name Original --season 1 --episode 2 --quality 720p
  seriesgrab download --media 7 --title "Film" --voice 1 --quality 1080p --subtitle en`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if season != "" {
				req.Season = &domain.Season{ID: season, Name: seasonName}
			}
			if episode != "" {
				req.Episode = &domain.Episode{ID: episode, Name: epName}
			}
			if err := req.Validate(); err != nil {
				return err
			}

			client, err := opts.apiClient()
			if err != nil {
				return err
			}
			if err := client.Submit(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", req.Media.Title)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Media.ID, "media", "", "media id")
	f.StringVar(&req.Media.Title, "title", "", "media title")
	f.StringVar(&req.Media.URL, "url", "", "media page URL")
	f.StringVar(&req.VoiceTrack.ID, "voice", "", "voice track id")
	f.StringVar(&req.VoiceTrack.Name, "voice-name", "", "voice track name")
	f.StringVar(&season, "season", "", "season id (series only)")
	f.StringVar(&seasonName, "season-name", "", "season display name")
	f.StringVar(&episode, "episode", "", "episode id; omitted means the first episode of the season")
	f.StringVar(&epName, "episode-name", "", "episode display name")
	f.StringVar(&req.Quality, "quality", "", "preferred quality, e.g. 720p")
	f.StringVar(&req.Subtitle, "subtitle", "", "subtitle language code")
	f.BoolVar(&req.All, "all", false, "continue with the following episodes")
	_ = cmd.MarkFlagRequired("media")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("voice")
	_ = cmd.MarkFlagRequired("quality")
	return cmd
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List current downloads",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.apiClient()
			if err != nil {
				return err
			}
			jobs, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			printJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}
}

func printJobs(w io.Writer, jobs []apiclient.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No downloads")
		return
	}
	fmt.Fprintf(w, "%-16s  %-8s  %6s  %-19s  %-10s  %s\n", "GID", "STATUS", "DONE", "SIZE", "SPEED", "NAME")
	for _, j := range jobs {
		size := fmt.Sprintf("%s/%s", humanize.Bytes(uint64(j.CompletedBytes)), humanize.Bytes(uint64(j.TotalBytes)))
		speed := "-"
		if j.SpeedBytesPerSec > 0 {
			speed = humanize.Bytes(uint64(j.SpeedBytesPerSec)) + "/s"
		}
		name := j.Name
		if j.Error != "" {
			name += " (" + j.Error + ")"
		}
		fmt.Fprintf(w, "%-16s  %-8s  %5.1f%%  %-19s  %-10s  %s\n", j.GID, j.Status, j.Percent, size, speed, name)
	}
}

func newPauseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <gid>",
		Short: "Pause a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.apiClient()
			if err != nil {
				return err
			}
			job, err := client.Pause(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", job.GID, job.Status)
			return nil
		},
	}
}

func newResumeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <gid>",
		Short: "Resume a paused download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.apiClient()
			if err != nil {
				return err
			}
			job, err := client.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", job.GID, job.Status)
			return nil
		},
	}
}

func newCancelCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "cancel <gid>",
		Aliases: []string{"rm"},
		Short:   "Cancel and remove a download",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.apiClient()
			if err != nil {
				return err
			}
			if err := client.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed\n", args[0])
			return nil
		},
	}
}

func newConcurrencyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "concurrency <n>",
		Short: "Set how many downloads run at once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("concurrency must be a positive integer, got %q", args[0])
			}
			client, err := opts.apiClient()
			if err != nil {
				return err
			}
			if err := client.SetConcurrency(cmd.Context(), n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Max concurrent downloads: %d\n", n)
			return nil
		},
	}
}

func newNotificationsCmd(opts *globalOptions) *cobra.Command {
	var q apiclient.NotificationQuery

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show recent notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.apiClient()
			if err != nil {
				return err
			}
			list, err := client.Notifications(cmd.Context(), q)
			if err != nil {
				return err
			}
			printNotifications(cmd.OutOrStdout(), list.Notifications)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.Kind, "kind", "", "filter by kind: queued, succeeded, failed, canceled, premium")
	f.StringVar(&q.Action, "action", "", "filter by action: open_file, cancel, retry, purchase")
	f.IntVar(&q.Limit, "limit", 20, "maximum number of notifications")
	f.BoolVar(&q.Historical, "historical", false, "read persisted history instead of recent notifications")
	return cmd
}

func printNotifications(w io.Writer, notifications []domain.Notification) {
	if len(notifications) == 0 {
		fmt.Fprintln(w, "No notifications")
		return
	}
	for _, n := range notifications {
		line := fmt.Sprintf("%s  %-9s  %s", humanize.Time(n.Timestamp), n.Kind, n.Title)
		if n.Body != "" {
			line += ": " + strings.ReplaceAll(n.Body, "\n", " ")
		}
		if n.Action != "" {
			line += fmt.Sprintf("  [%s %s]", n.Action, n.ID)
		}
		fmt.Fprintln(w, line)
	}
}

func newActionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "action <notification-id>",
		Short: "Perform the action a notification offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.apiClient()
			if err != nil {
				return err
			}
			result, err := client.Act(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case result.Path != "":
				fmt.Fprintf(out, "%s: %s\n", result.Action, result.Path)
			case result.URL != "":
				fmt.Fprintf(out, "%s: %s\n", result.Action, result.URL)
			case result.GID != "":
				fmt.Fprintf(out, "%s: %s\n", result.Action, result.GID)
			default:
				fmt.Fprintf(out, "%s: done\n", result.Action)
			}
			return nil
		},
	}
}
