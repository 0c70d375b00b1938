package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/popui/internal/output"
	"github.com/jmylchreest/popui/internal/session"
)

var inspectOpts struct {
	clicks  []string
	keys    []string
	scroll  int
	timeout time.Duration

	// Output options
	format    string
	template  string
	noJournal bool
	limit     int
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Drive a page non-interactively and print its state",
	Long: `Load the document, bind its popups, then replay page events and print
the resulting session snapshot.

Events run in this order: scroll, each --click in turn (waiting for remote
content after every click), then each --key.

Examples:
  # Which popup is open after clicking the login link?
  popui inspect --click '#open-login'

  # Hand off from one popup to another and close with Escape
  popui inspect --click '#open-login' --click '#open-news' --key Escape

  # Machine-readable output
  popui inspect --click '[data-popup-target=news]' --format json

  # Custom template
  popui inspect --click '#open-login' --template '{{.Open}} {{join .BodyClasses ","}}'`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringArrayVar(&inspectOpts.clicks, "click", nil,
		"Click the first element matching this selector (repeatable)")
	inspectCmd.Flags().StringArrayVar(&inspectOpts.keys, "key", nil,
		"Release this key on the document after clicking (repeatable)")
	inspectCmd.Flags().IntVar(&inspectOpts.scroll, "scroll", 0,
		"Scroll the page by this many rows before clicking")
	inspectCmd.Flags().DurationVar(&inspectOpts.timeout, "timeout", 30*time.Second,
		"How long to wait for remote content")

	inspectCmd.Flags().StringVarP(&inspectOpts.format, "format", "f", string(output.FormatPlain),
		fmt.Sprintf("Output format (%s)", strings.Join(formatNames(), ", ")))
	inspectCmd.Flags().StringVar(&inspectOpts.template, "template", "",
		"Custom Go template for plain output")
	inspectCmd.Flags().BoolVar(&inspectOpts.noJournal, "no-journal", false,
		"Omit the lifecycle journal")
	inspectCmd.Flags().IntVarP(&inspectOpts.limit, "limit", "n", 20,
		"Maximum number of journal entries to show")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), inspectOpts.timeout)
	defer cancel()

	opts := output.DefaultFormatterOptions()
	opts.Template = inspectOpts.template
	opts.ShowJournal = !inspectOpts.noJournal
	opts.JournalLimit = inspectOpts.limit
	formatter, err := output.NewFormatter(output.FormatType(inspectOpts.format), opts)
	if err != nil {
		return err
	}

	recorder, closeRecorder, err := openRecorder()
	if err != nil {
		return err
	}
	defer closeRecorder()

	sessOpts := []session.Option{session.WithLogger(logger)}
	if recorder != nil {
		sessOpts = append(sessOpts, session.WithRecorder(recorder))
	}
	sess, err := session.New(getConfig(), sessOpts...)
	if err != nil {
		return err
	}
	logger.Debug("session ready", "popups", len(sess.Bindings()))

	if inspectOpts.scroll != 0 {
		sess.Scroll(inspectOpts.scroll)
	}
	for _, selector := range inspectOpts.clicks {
		if err := sess.Click(selector); err != nil {
			return err
		}
		if err := sess.Settle(ctx); err != nil {
			return fmt.Errorf("waiting for remote content after %s: %w", selector, err)
		}
	}
	for _, key := range inspectOpts.keys {
		sess.PressKey(key)
	}

	return formatter.Format(os.Stdout, sess.Snapshot())
}

func formatNames() []string {
	var names []string
	for _, ft := range output.FormatTypes() {
		names = append(names, string(ft))
	}
	return names
}
