package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/cobra"

	"github.com/saveblush/reraw-feed/models"
	"github.com/saveblush/reraw-feed/pgk/feed"
	"github.com/saveblush/reraw-feed/pgk/medialoader"
)

var (
	feedHashtag  string
	feedPubkey   string
	feedSort     string
	feedPageSize int
	feedPages    int

	publishKind    int
	publishContent string
	publishTags    []string

	mediaCheck bool

	verifyConfirm bool
	verifyRevoke  bool
)

var feedCmd = &cobra.Command{
	Use:       "feed [discovery|home|trending|hashtag|profile|recent]",
	Short:     "Print pages of a video feed",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"discovery", "home", "trending", "hashtag", "profile", "recent"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		feedType := models.FeedType(args[0])
		if feedType == models.FeedHome {
			if err := a.follows.Refresh(cmd.Context()); err != nil {
				a.cctx.Log.Warnf("load follow list error: %s", err)
			}
		}

		f, err := a.feeds.OpenFeed(feedType, feed.Params{
			Hashtag:  feedHashtag,
			Pubkey:   feedPubkey,
			SortMode: models.SortMode(feedSort),
			PageSize: feedPageSize,
		})
		if err != nil {
			return err
		}

		for n := 1; n <= feedPages; n++ {
			page, err := f.Next(cmd.Context())
			if err != nil {
				return err
			}

			err = printJSON(map[string]interface{}{
				"page":   n,
				"mode":   f.Mode().String(),
				"next":   page.Next.String(),
				"videos": page.Videos,
			})
			if err != nil {
				return err
			}

			if !page.HasMore() {
				break
			}
		}

		return nil
	},
}

var eventCmd = &cobra.Command{
	Use:   "event [id]",
	Short: "Look up one event by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		evt := a.gateway.GetEvent(cmd.Context(), args[0])
		if evt == nil {
			events, err := a.dispatcher.Query(cmd.Context(), nostr.Filters{{IDs: []string{args[0]}, Limit: 1}})
			if err != nil {
				return err
			}
			if len(events) > 0 {
				evt = events[0]
			}
		}

		if evt == nil {
			return fmt.Errorf("event %s not found", args[0])
		}

		return printJSON(evt)
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile [pubkey]",
	Short: "Look up the latest profile of a pubkey",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		evt := a.gateway.GetProfile(cmd.Context(), args[0])
		if evt == nil {
			events, err := a.dispatcher.Query(cmd.Context(), nostr.Filters{{
				Kinds:   []int{models.KindProfile},
				Authors: []string{args[0]},
				Limit:   1,
			}})
			if err != nil {
				return err
			}
			for _, e := range events {
				if evt == nil || e.CreatedAt > evt.CreatedAt {
					evt = e
				}
			}
		}

		if evt == nil {
			return fmt.Errorf("profile %s not found", args[0])
		}

		return printJSON(evt)
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Sign and publish an event with AUTH.SECRET_KEY",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.signer == nil {
			return errors.New("publish: AUTH.SECRET_KEY is not set")
		}

		evt := &nostr.Event{
			Kind:      publishKind,
			CreatedAt: nostr.Now(),
			Content:   publishContent,
			Tags:      nostr.Tags{},
		}
		for _, t := range publishTags {
			// key:value
			k, v, ok := strings.Cut(t, ":")
			if !ok {
				return fmt.Errorf("publish: invalid tag %q, want key:value", t)
			}
			evt.Tags = append(evt.Tags, nostr.Tag{k, v})
		}

		err = a.signer.SignEvent(cmd.Context(), evt)
		if err != nil {
			return err
		}

		err = a.dispatcher.Publish(cmd.Context(), evt)
		if err != nil {
			return err
		}

		return printJSON(evt)
	},
}

var mediaCmd = &cobra.Command{
	Use:   "media [url]",
	Short: "Fetch a protected media resource with NIP-98 authorization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if mediaCheck {
			return printJSON(medialoader.CheckAuth(cmd.Context(), nil, a.issuer, args[0]))
		}

		loader := medialoader.NewAuthLoader(
			medialoader.NewHTTPLoader(nil, a.cctx.Config.Media.Timeout),
			a.issuer,
			a.cctx.Log,
		)

		var loadErr error
		loader.Load(cmd.Context(), &medialoader.LoaderContext{URL: args[0], Method: "GET"}, medialoader.Callbacks{
			OnSuccess: func(resp *medialoader.Response, _ *medialoader.LoaderContext) {
				loadErr = printJSON(map[string]interface{}{
					"url":    resp.URL,
					"status": resp.StatusCode,
					"bytes":  len(resp.Data),
				})
			},
			OnError: func(err error, _ *medialoader.LoaderContext) {
				loadErr = err
			},
			OnTimeout: func(lc *medialoader.LoaderContext) {
				loadErr = fmt.Errorf("media: %s timed out", lc.URL)
			},
		})

		return loadErr
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Show, confirm or revoke the verified-access flag",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		switch {
		case verifyConfirm && verifyRevoke:
			return errors.New("verify: use only one of --confirm and --revoke")
		case verifyConfirm:
			err = a.verification.Confirm()
		case verifyRevoke:
			err = a.verification.Revoke()
		}
		if err != nil {
			return err
		}

		status := map[string]interface{}{"verified": a.verification.Verified()}
		if exp := a.verification.ExpiresAt(); !exp.IsZero() {
			status["expires_at"] = exp.Format(time.RFC3339)
		}

		return printJSON(status)
	},
}

func init() {
	feedCmd.Flags().StringVar(&feedHashtag, "hashtag", "", "hashtag of a hashtag feed")
	feedCmd.Flags().StringVar(&feedPubkey, "pubkey", "", "author of a profile feed")
	feedCmd.Flags().StringVar(&feedSort, "sort", "", "sort mode: top, hot, rising, controversial")
	feedCmd.Flags().IntVar(&feedPageSize, "page-size", 0, "videos per page (default FEED.PAGE_SIZE)")
	feedCmd.Flags().IntVar(&feedPages, "pages", 1, "number of pages to print")

	publishCmd.Flags().IntVar(&publishKind, "kind", 1, "event kind")
	publishCmd.Flags().StringVar(&publishContent, "content", "", "event content")
	publishCmd.Flags().StringArrayVar(&publishTags, "tag", nil, "tag as key:value, repeatable")

	mediaCmd.Flags().BoolVar(&mediaCheck, "check", false, "only probe with HEAD")

	verifyCmd.Flags().BoolVar(&verifyConfirm, "confirm", false, "confirm verification")
	verifyCmd.Flags().BoolVar(&verifyRevoke, "revoke", false, "revoke verification")

	rootCmd.AddCommand(feedCmd, eventCmd, profileCmd, publishCmd, mediaCmd, verifyCmd)
}
