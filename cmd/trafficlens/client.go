// Package main implements the trafficlens CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trafficlens/trafficlens/internal/client"
)

type clientConfig struct {
	apiURL string
}

func addClientFlags(cmd *cobra.Command, c *clientConfig) {
	cmd.Flags().StringVar(&c.apiURL, "api-url", "", "query API URL (default from config, env: TRAFFICLENS_API_ADDR)")
}

func (c *clientConfig) newClient() *client.Client {
	apiURL := c.apiURL
	if apiURL == "" {
		apiURL = cfg.APIAddr
	}
	return client.NewClient(apiURL)
}

type filterFlags struct {
	host       string
	targetOnly bool
	method     string
	status     int
	search     string
	limit      int
}

func addFilterFlags(cmd *cobra.Command, f *filterFlags) {
	cmd.Flags().StringVar(&f.host, "host", "", "filter by host (substring match)")
	cmd.Flags().BoolVar(&f.targetOnly, "target-only", false, "restrict to the configured target_domain")
	cmd.Flags().StringVar(&f.method, "method", "", "filter by HTTP method")
	cmd.Flags().IntVar(&f.status, "status", 0, "filter by response status code")
	cmd.Flags().StringVar(&f.search, "search", "", "search URL and bodies for a substring")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of exchanges")
}

func (f *filterFlags) options() (client.ListOptions, error) {
	opts := client.ListOptions{
		Host:   f.host,
		Method: f.method,
		Search: f.search,
		Limit:  f.limit,
	}
	if f.targetOnly {
		if cfg.TargetDomain == "" {
			return opts, fmt.Errorf("--target-only requires target_domain in config or TRAFFICLENS_TARGET_DOMAIN")
		}
		opts.TargetDomain = cfg.TargetDomain
	}
	if f.status != 0 {
		status := f.status
		opts.Status = &status
	}
	return opts, nil
}
