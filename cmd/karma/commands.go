package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/nasermirzaei89/env"
	"github.com/nasermirzaei89/karma/backend"
	"github.com/nasermirzaei89/karma/backend/httpapi"
	"github.com/nasermirzaei89/karma/client"
	"github.com/nasermirzaei89/karma/drafts"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/logging"
	"github.com/nasermirzaei89/karma/optimistic"
	"github.com/nasermirzaei89/karma/refresh"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8000"

type options struct {
	server   string
	username string
	password string
	logLevel string
}

type cli struct {
	opts   options
	out    io.Writer
	errOut io.Writer
	client *client.Client
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:           "karma",
		Short:         "Read and write the karma community feed",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.connect(cmd.Context(), cmd.Name() == "register")
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			c.printNotices()
		},
	}

	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.opts.server, "server", env.GetString("KARMA_SERVER", defaultServer), "Server base URL")
	flags.StringVarP(&c.opts.username, "username", "u", env.GetString("KARMA_USERNAME", ""), "Sign in as this user")
	flags.StringVarP(&c.opts.password, "password", "p", env.GetString("KARMA_PASSWORD", ""), "Password for --username")
	flags.StringVar(&c.opts.logLevel, "log-level", env.GetString("KARMA_LOG_LEVEL", "error"), "Log level")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "feed",
			Short: "Show posts with their comment threads",
			Args:  cobra.NoArgs,
			RunE:  c.runFeed,
		},
		&cobra.Command{
			Use:   "leaderboard",
			Short: "Show the top authors of the last 24 hours",
			Args:  cobra.NoArgs,
			RunE:  c.runLeaderboard,
		},
		&cobra.Command{
			Use:   "post <content>",
			Short: "Publish a post",
			Args:  cobra.MinimumNArgs(1),
			RunE:  c.runPost,
		},
		&cobra.Command{
			Use:   "comment <post-id> <content>",
			Short: "Comment on a post",
			Args:  cobra.MinimumNArgs(2),
			RunE:  c.runComment,
		},
		&cobra.Command{
			Use:   "reply <comment-id> <content>",
			Short: "Reply to a comment",
			Args:  cobra.MinimumNArgs(2),
			RunE:  c.runReply,
		},
		&cobra.Command{
			Use:       "like post|comment <id>",
			Short:     "Toggle your like on a post or comment",
			Args:      cobra.ExactArgs(2),
			ValidArgs: []string{string(feed.KindPost), string(feed.KindComment)},
			RunE:      c.runLike,
		},
		&cobra.Command{
			Use:       "delete post|comment <id>",
			Short:     "Delete one of your posts or comments",
			Args:      cobra.ExactArgs(2),
			ValidArgs: []string{string(feed.KindPost), string(feed.KindComment)},
			RunE:      c.runDelete,
		},
		&cobra.Command{
			Use:   "register",
			Short: "Create an account with --username and --password",
			Args:  cobra.NoArgs,
			RunE:  c.runRegister,
		},
		&cobra.Command{
			Use:   "whoami",
			Short: "Show the signed in user",
			Args:  cobra.NoArgs,
			RunE:  c.runWhoami,
		},
	)

	return rootCmd
}

func (c *cli) connect(ctx context.Context, registering bool) error {
	logger, _, err := logging.New(c.errOut, logging.Config{Level: c.opts.logLevel})
	if err != nil {
		return err
	}

	slog.SetDefault(logger)

	api, err := httpapi.New(c.opts.server, nil)
	if err != nil {
		return err
	}

	c.client = client.New(api, nil)

	err = c.client.Start(ctx)
	if err != nil {
		if !serverAnswered(err) {
			return fmt.Errorf("failed to load feed: %w", err)
		}

		slog.WarnContext(ctx, "feed loaded partially", "error", err)
	}

	if registering || c.opts.username == "" {
		return nil
	}

	_, err = c.client.Login(ctx, c.opts.username, c.opts.password)

	return err
}

// serverAnswered reports whether every failed read of a refresh got an
// error response from the server, as opposed to no response at all.
func serverAnswered(err error) bool {
	var refreshErr *refresh.Error
	if !errors.As(err, &refreshErr) {
		return false
	}

	for _, e := range []error{refreshErr.FeedErr, refreshErr.LeaderboardErr} {
		var statusErr *backend.StatusError
		if e != nil && !errors.As(e, &statusErr) {
			return false
		}
	}

	return true
}

func (c *cli) printNotices() {
	if c.client == nil {
		return
	}

	for _, n := range c.client.Notices().Drain() {
		_, _ = fmt.Fprintf(c.errOut, "%s: %s\n", n.Level, n.Message)
	}
}

func (c *cli) runFeed(*cobra.Command, []string) error {
	posts := c.client.Posts()
	if len(posts) == 0 {
		_, _ = fmt.Fprintln(c.out, "No posts yet.")

		return nil
	}

	for _, p := range posts {
		_, _ = fmt.Fprintf(c.out, "[%s] %s (%d karma) %s\n", p.ID, p.Author.Username, p.Author.TotalKarma(), likes(p.LikeState()))
		_, _ = fmt.Fprintf(c.out, "  %s\n", p.Content)
		_, _ = fmt.Fprintf(c.out, "  %d comments\n", p.CommentCount)

		feed.Walk(p.Comments, func(cm *feed.Comment, depth int) bool {
			indent := strings.Repeat("  ", depth+2)
			_, _ = fmt.Fprintf(c.out, "%s[%s] %s: %s %s", indent, cm.ID, cm.Author.Username, cm.Content, likes(cm.LikeState()))

			if availability := feed.ReplyAvailability(depth); !availability.Allowed {
				_, _ = fmt.Fprintf(c.out, " (%s)", availability.Reason)
			}

			_, _ = fmt.Fprintln(c.out)

			return true
		})
	}

	return nil
}

func likes(ls feed.LikeState) string {
	mark := ""
	if ls.HasLiked {
		mark = " *"
	}

	return fmt.Sprintf("%d likes%s", ls.LikeCount, mark)
}

func (c *cli) runLeaderboard(*cobra.Command, []string) error {
	entries := c.client.Leaderboard()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(c.out, "Nobody earned karma in the last 24 hours.")

		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tUSER\tKARMA\tPOST LIKES\tCOMMENT LIKES")

	for i, e := range entries {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", i+1, e.Username, e.DailyKarma, e.PostLikes24h, e.CommentLikes24h)
	}

	return tw.Flush()
}

func (c *cli) runPost(cmd *cobra.Command, args []string) error {
	post, err := c.client.CreatePost(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.out, "Created post %s\n", post.ID)

	return nil
}

func (c *cli) runComment(cmd *cobra.Command, args []string) error {
	postID := feed.ID(args[0])

	c.client.Drafts().Set(drafts.PostKey(postID), strings.Join(args[1:], " "))

	comment, err := c.client.SubmitComment(cmd.Context(), postID)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.out, "Created comment %s\n", comment.ID)

	return nil
}

func (c *cli) runReply(cmd *cobra.Command, args []string) error {
	parentID := feed.ID(args[0])

	postID, ok := c.findCommentPost(parentID)
	if !ok {
		return fmt.Errorf("comment %s not found in the feed", parentID)
	}

	c.client.Drafts().Set(drafts.CommentKey(parentID), strings.Join(args[1:], " "))

	comment, err := c.client.SubmitReply(cmd.Context(), postID, parentID)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.out, "Created reply %s\n", comment.ID)

	return nil
}

func (c *cli) findCommentPost(commentID feed.ID) (feed.ID, bool) {
	for _, p := range c.client.Posts() {
		if _, _, ok := feed.FindComment(p.Comments, commentID); ok {
			return p.ID, true
		}
	}

	return "", false
}

func parseRef(kind, id string) (feed.Ref, error) {
	ref := feed.Ref{Kind: feed.Kind(kind), ID: feed.ID(id)}
	if !ref.Kind.IsValid() {
		return feed.Ref{}, &feed.InvalidKindError{Kind: ref.Kind}
	}

	return ref, nil
}

func (c *cli) runLike(cmd *cobra.Command, args []string) error {
	ref, err := parseRef(args[0], args[1])
	if err != nil {
		return err
	}

	var phase optimistic.Phase

	if ref.Kind == feed.KindPost {
		phase, err = c.client.LikePost(cmd.Context(), ref.ID)
	} else {
		phase, err = c.client.LikeComment(cmd.Context(), ref.ID)
	}

	if err != nil {
		return err
	}

	state, _ := c.stateOf(ref)
	_, _ = fmt.Fprintf(c.out, "Like on %s %s: %s (%s)\n", ref.Kind, ref.ID, phase, likes(state))

	return nil
}

func (c *cli) stateOf(ref feed.Ref) (feed.LikeState, bool) {
	for _, p := range c.client.Posts() {
		if ref.Kind == feed.KindPost && p.ID == ref.ID {
			return p.LikeState(), true
		}

		if ref.Kind == feed.KindComment {
			if cm, _, ok := feed.FindComment(p.Comments, ref.ID); ok {
				return cm.LikeState(), true
			}
		}
	}

	return feed.LikeState{}, false
}

func (c *cli) runDelete(cmd *cobra.Command, args []string) error {
	ref, err := parseRef(args[0], args[1])
	if err != nil {
		return err
	}

	if ref.Kind == feed.KindPost {
		_, err = c.client.DeletePost(cmd.Context(), ref.ID)
	} else {
		_, err = c.client.DeleteComment(cmd.Context(), ref.ID)
	}

	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.out, "Deleted %s %s\n", ref.Kind, ref.ID)

	return nil
}

func (c *cli) runRegister(cmd *cobra.Command, _ []string) error {
	if c.opts.username == "" || c.opts.password == "" {
		return errors.New("register needs --username and --password")
	}

	user, err := c.client.Register(cmd.Context(), c.opts.username, c.opts.password)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.out, "Registered %s\n", user.Username)

	return nil
}

func (c *cli) runWhoami(*cobra.Command, []string) error {
	state := c.client.Session()
	if !state.Authenticated || state.User == nil {
		_, _ = fmt.Fprintln(c.out, "Not signed in.")

		return nil
	}

	_, _ = fmt.Fprintf(c.out, "%s (%d karma)\n", state.User.Username, state.User.TotalKarma())

	return nil
}
