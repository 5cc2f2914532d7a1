package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/td/internal/conflict"
	"github.com/mschirtzinger/td/internal/record"
	"github.com/mschirtzinger/td/internal/syncer"
	"github.com/mschirtzinger/td/internal/ui"
	"github.com/mschirtzinger/td/internal/vcs"
	"github.com/mschirtzinger/td/internal/vcs/git"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: GroupSetup,
	Short:   "Create or connect the data repository",
	Long: `Make the data directory a git repository.

With --remote (or git.remote in the config) an empty data directory is
cloned from the remote; an existing repository gets origin added if it
has none. Without a remote a new repository is created with an empty
store and one commit. Running init again is safe.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetString("remote")
		if remote == "" {
			remote = cfg.Git.Remote
		}

		res, err := git.Setup(cmd.Context(), git.SetupOptions{
			Path:      cfg.DataDir,
			RemoteURL: remote,
			StoreFile: cfg.StoreFile,
			Options:   gitOptions(),
		})
		if err != nil {
			return err
		}

		for _, w := range res.Warnings {
			WarnError("%s", w)
		}

		switch {
		case res.Cloned:
			printf("%s Cloned %s into %s\n", ui.RenderPassIcon(), remote, cfg.DataDir)
		case res.Created:
			printf("%s Created repository in %s\n", ui.RenderPassIcon(), cfg.DataDir)
		default:
			printf("%s Repository already set up in %s\n", ui.RenderPassIcon(), cfg.DataDir)
		}
		if res.RemoteAdded {
			printf("  origin: %s\n", remote)
		}
		if res.TrackedAs != "" {
			printf("  tracking: %s\n", res.TrackedAs)
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: GroupSync,
	Short:   "Commit local changes, merge the remote and push",
	Long: `Synchronize the todo list with the remote:

  1. commit the store file if it changed
  2. fetch and merge the remote branch
  3. resolve conflicts in the store file (see conflict.strategy)
  4. push

With --watch, sync once and then again whenever the store file changes,
until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		s, err := newSyncer(repo, record.NewStore(cfg.StorePath()))
		if err != nil {
			return err
		}

		watch, _ := cmd.Flags().GetBool("watch")
		if watch {
			printf("%s Watching %s (ctrl+c to stop)\n", ui.RenderAccent(ui.IconInfo), cfg.StorePath())
			return s.Watch(cmd.Context(), syncer.WatchOptions{
				OnResult: func(res *syncer.Result, err error) {
					if err != nil {
						msg, _, _ := describeError(err)
						WarnError("sync failed: %s", msg)
						return
					}
					printSyncResult(res)
				},
			})
		}

		res, err := s.Sync(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(res)
		}
		printSyncResult(res)
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the data repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		recent, _ := cmd.Flags().GetInt("recent")
		st, err := git.Inspect(cfg.DataDir, recent)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(st)
		}
		fmt.Print(renderStatus(st))
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:     "resolve",
	GroupID: GroupSync,
	Short:   "Resolve conflict markers left in the store file",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.StorePath()
		// #nosec G304 - store path comes from configuration
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !conflict.HasMarkers(raw) {
			printf("%s No conflicts in %s\n", ui.RenderPassIcon(), path)
			return nil
		}

		out, err := newResolver().ResolveFile(cmd.Context(), path)
		if err != nil {
			return err
		}
		printf("%s Resolved %d conflict(s)\n", ui.RenderPassIcon(), out.Blocks())
		for _, d := range out.Decisions {
			if d == conflict.Discarded {
				WarnError("a block got no valid answer and was dropped")
			}
		}
		printf("Run %s to commit and push the result.\n", ui.RenderAccent("td sync"))
		return nil
	},
}

func init() {
	initCmd.Flags().String("remote", "", "Remote URL to clone from or add as origin")
	syncCmd.Flags().BoolP("watch", "w", false, "Keep running and sync whenever the store changes")
	syncStatusCmd.Flags().Int("recent", git.DefaultRecentCommits, "Number of recent commits to show")

	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(initCmd, syncCmd, resolveCmd)
}

func printSyncResult(res *syncer.Result) {
	var parts []string
	if res.Committed {
		parts = append(parts, "committed local changes")
	}
	switch res.Outcome {
	case syncer.OutcomeNoRemote:
		parts = append(parts, "no remote configured")
	case syncer.OutcomeUpToDate:
		parts = append(parts, "already up to date")
	case syncer.OutcomeFastForward:
		parts = append(parts, "fast-forwarded")
	case syncer.OutcomeMerged:
		parts = append(parts, "merged remote changes")
	case syncer.OutcomeResolved:
		parts = append(parts, "resolved conflicts")
	case syncer.OutcomeFirstPush:
		parts = append(parts, "remote was empty")
	}
	if res.Pushed {
		parts = append(parts, "pushed")
	}
	printf("%s Synced: %s (%d todos)\n", ui.RenderPassIcon(), strings.Join(parts, ", "), res.Records)
}

func renderStatus(st *git.RepoStatus) string {
	var b strings.Builder

	branch := st.Branch
	if branch == "" {
		branch = "(no branch)"
	}
	remote := st.RemoteURL
	if remote == "" {
		remote = ui.RenderMuted("(none)")
	}
	fmt.Fprintf(&b, "%s\n", ui.RenderHeader("Repository"))
	fmt.Fprintf(&b, "  branch: %s\n", branch)
	fmt.Fprintf(&b, "  remote: %s\n", remote)

	fmt.Fprintf(&b, "\n%s\n", ui.RenderHeader(fmt.Sprintf("Changes (%d)", len(st.Changes))))
	if len(st.Changes) == 0 {
		fmt.Fprintf(&b, "  %s\n", ui.RenderMuted("working tree clean"))
	}
	for _, c := range st.Changes {
		fmt.Fprintf(&b, "  %s %s\n", ui.RenderWarn(changeLabel(c)), c.Path)
	}

	fmt.Fprintf(&b, "\n%s\n", ui.RenderHeader("Recent commits"))
	if len(st.Recent) == 0 {
		fmt.Fprintf(&b, "  %s\n", ui.RenderMuted("no commits yet"))
	}
	for _, c := range st.Recent {
		hash := c.Hash
		if len(hash) > 7 {
			hash = hash[:7]
		}
		fmt.Fprintf(&b, "  %s %s %s\n", ui.RenderAccent(hash), c.Subject,
			ui.RenderMuted(fmt.Sprintf("(%s, %s)", c.Author, c.When.Format("2006-01-02 15:04"))))
	}
	return b.String()
}

func changeLabel(fs vcs.FileStatus) string {
	code := fs.StagedCode
	if code == "" || code == vcs.StatusUnmodified {
		code = fs.Status
	}
	switch code {
	case vcs.StatusModified:
		return "modified: "
	case vcs.StatusAdded:
		return "added:    "
	case vcs.StatusDeleted:
		return "deleted:  "
	case vcs.StatusRenamed:
		return "renamed:  "
	case vcs.StatusUntracked:
		return "untracked:"
	case vcs.StatusConflict:
		return "conflict: "
	}
	return "changed:  "
}
