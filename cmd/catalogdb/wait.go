package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/catalogdb/internal/constants"
	"github.com/loykin/catalogdb/internal/httpc"
	"github.com/loykin/catalogdb/internal/util"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

// waitParams holds the parsed and normalized parameters for waiting
type waitParams struct {
	url      string
	method   string
	expected int
	field    string
	value    string
	timeout  time.Duration
	interval time.Duration
}

// parseExpect splits "status=healthy" into a gjson path and the wanted value.
func parseExpect(s string) (string, string) {
	path, value, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok {
		return "", ""
	}
	return strings.TrimSpace(path), strings.TrimSpace(value)
}

func (p waitParams) satisfied(status int, body []byte) bool {
	if status != p.expected {
		return false
	}
	if p.field == "" {
		return true
	}
	return gjson.GetBytes(body, p.field).String() == p.value
}

// fetch executes one request; HEAD is honored, anything else is a GET.
func fetch(ctx context.Context, hc *httpc.Httpc, method, url string) (int, []byte, error) {
	req := hc.New().R().SetContext(ctx)
	var (
		status int
		body   []byte
	)
	resp, err := req.Execute(method, url)
	if resp != nil {
		status = resp.StatusCode()
		body = resp.Body()
	}
	return status, body, err
}

// poll repeats the request until it is satisfied or the timeout elapses.
func poll(ctx context.Context, hc *httpc.Httpc, p waitParams) error {
	deadline := time.Now().Add(p.timeout)
	var lastStatus int
	var lastErr error

	for {
		status, body, err := fetch(ctx, hc, p.method, p.url)
		if err == nil && p.satisfied(status, body) {
			return nil
		}
		lastStatus, lastErr = status, err

		if time.Now().After(deadline) {
			if lastErr != nil {
				return fmt.Errorf("wait: timeout waiting for %s: %w", p.url, lastErr)
			}
			return fmt.Errorf("wait: timeout waiting for %s to return %d (last=%d)", p.url, p.expected, lastStatus)
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func newWaitCmd() *cobra.Command {
	var (
		p    waitParams
		opts httpc.TLSOptions
		exp  string
	)
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Poll a running server until its health endpoint reports ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			p.method = strings.ToUpper(util.TrimWithDefault(p.method, constants.DefaultWaitMethod))
			if p.method != http.MethodHead {
				p.method = http.MethodGet
			}
			if p.expected == 0 {
				p.expected = constants.DefaultWaitStatus
			}
			p.field, p.value = parseExpect(exp)
			hc := &httpc.Httpc{TLSConfig: opts.TLSConfig(), Timeout: constants.DefaultWaitMaxDelay}
			if err := poll(cmd.Context(), hc, p); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is ready\n", p.url)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.url, "url", "http://localhost"+constants.DefaultListenAddr+constants.DefaultHealthPath, "endpoint to poll")
	f.StringVar(&p.method, "method", constants.DefaultWaitMethod, "GET or HEAD")
	f.IntVar(&p.expected, "status", constants.DefaultWaitStatus, "expected HTTP status")
	f.StringVar(&exp, "expect", "status=healthy", "gjson path=value the response body must match; empty disables")
	f.DurationVar(&p.timeout, "timeout", constants.DefaultWaitTimeout, "give up after this long")
	f.DurationVar(&p.interval, "interval", constants.DefaultWaitInterval, "delay between attempts")
	f.BoolVar(&opts.Insecure, "insecure", false, "skip TLS certificate verification")
	f.StringVar(&opts.MinVersion, "min-tls", "", "minimum TLS version")
	f.StringVar(&opts.MaxVersion, "max-tls", "", "maximum TLS version")
	return cmd
}
