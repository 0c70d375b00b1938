package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/popui/internal/dom"
	"github.com/jmylchreest/popui/internal/popup"
)

var fetchOpts struct {
	query   map[string]string
	headers map[string]string
	timeout time.Duration
	format  string
	apply   bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch remote popup content and print it",
	Long: `Fetch one remote popup response the way a remote popup would and print
the decoded mutation.

With --apply, the mutation is applied to the configured document and the
resulting body HTML is printed instead. Reload and redirect instructions are
reported rather than followed.

Examples:
  popui fetch http://localhost:8080/popup/news
  popui fetch http://localhost:8080/popup/news --query lang=en --format yaml
  popui fetch http://localhost:8080/popup/news --apply -d page.html`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringToStringVarP(&fetchOpts.query, "query", "q", nil,
		"Query parameters to add (key=value, repeatable)")
	fetchCmd.Flags().StringToStringVarP(&fetchOpts.headers, "header", "H", nil,
		"Request headers to add (name=value, repeatable)")
	fetchCmd.Flags().DurationVar(&fetchOpts.timeout, "timeout", popup.DefaultTimeout,
		"Request timeout")
	fetchCmd.Flags().StringVarP(&fetchOpts.format, "format", "f", "json",
		"Output format for the mutation (json, yaml)")
	fetchCmd.Flags().BoolVar(&fetchOpts.apply, "apply", false,
		"Apply the mutation to the document and print the body HTML")
}

func runFetch(cmd *cobra.Command, args []string) error {
	req := &popup.Request{
		URL:     args[0],
		Method:  http.MethodGet,
		Query:   make(url.Values),
		Header:  make(http.Header),
		Timeout: fetchOpts.timeout,
	}
	for k, v := range fetchOpts.query {
		req.Query.Set(k, v)
	}
	for k, v := range fetchOpts.headers {
		req.Header.Set(k, v)
	}

	transport := popup.NewHTTPTransport(&http.Client{}, logger)
	m, err := transport.Do(context.Background(), req)
	if err != nil {
		return err
	}

	if fetchOpts.apply {
		return applyMutation(m)
	}
	return printMutation(m)
}

func printMutation(m *popup.Mutation) error {
	var data []byte
	var err error
	switch fetchOpts.format {
	case "json":
		data, err = json.MarshalIndent(m, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(m)
	default:
		return fmt.Errorf("unknown format %q, must be one of: json, yaml", fetchOpts.format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode mutation: %w", err)
	}

	logger.Info("fetched remote content",
		"fragments", len(m.Replaces)+len(m.Append)+len(m.Content),
		"size", humanize.Bytes(uint64(len(data))))

	_, err = os.Stdout.Write(data)
	return err
}

func applyMutation(m *popup.Mutation) error {
	c := getConfig()
	if c.Document.Path == "" {
		return fmt.Errorf("--apply needs a document (--document or [document] path)")
	}

	var reloaded bool
	var location string
	doc, err := dom.Open(c.Document.Path,
		dom.WithMetrics(c.Document.Metrics()),
		dom.WithLogger(logger),
		dom.WithReloadHandler(func() { reloaded = true }),
		dom.WithNavigateHandler(func(u string) { location = u }),
	)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	if _, err := m.Apply(doc); err != nil {
		return fmt.Errorf("failed to apply mutation: %w", err)
	}

	switch {
	case reloaded:
		fmt.Fprintln(os.Stderr, "mutation reloads the page")
	case location != "":
		fmt.Fprintf(os.Stderr, "mutation redirects to %s\n", location)
	}
	for _, script := range doc.Scripts() {
		logger.Info("injected script", "bytes", humanize.Comma(int64(len(script))))
	}

	fmt.Println(doc.OuterHTML(doc.Body()))
	return nil
}
