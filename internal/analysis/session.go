package analysis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/trafficlens/trafficlens/internal/logging"
	"github.com/trafficlens/trafficlens/internal/models"
	"github.com/trafficlens/trafficlens/internal/store"
)

// AnalyzeSession aggregates the most recent exchanges in a single pass.
// Every call re-derives from the store; no state is kept between calls.
// A structurally unreadable exchange is counted as skipped, never fatal.
func (en *Engine) AnalyzeSession(ctx context.Context, limit int) (*models.SessionReport, error) {
	exchanges, err := en.store.List(ctx, store.Filter{}, store.OrderDesc, limit)
	if err != nil {
		return nil, err
	}

	report := &models.SessionReport{
		Methods:     make(map[string]int),
		StatusCodes: make(map[string]int),
	}
	if len(exchanges) == 0 {
		return report, nil
	}

	hostCounts := make(map[string]int)
	hostFirstSeen := make(map[string]int)
	var totalDuration float64
	var httpCount, failedCount, slowCount int

	for i := range exchanges {
		e := &exchanges[i]
		if e.Method == "" && e.URL == "" {
			report.Skipped++
			en.logger.Warn("skipping unreadable exchange", logging.ExchangeID(e.ID))
			continue
		}

		report.TotalExchanges++
		report.Methods[e.Method]++

		if e.ResponseStatus != nil {
			report.StatusCodes[strconv.Itoa(*e.ResponseStatus)]++
			if *e.ResponseStatus >= 400 {
				failedCount++
			}
		}

		if _, ok := hostCounts[e.Host]; !ok {
			hostFirstSeen[e.Host] = i
		}
		hostCounts[e.Host]++

		totalDuration += e.DurationSeconds
		if e.DurationSeconds > 2 {
			slowCount++
		}
		if e.Protocol == "http" {
			report.SecurityIssues++
			httpCount++
		}
	}

	if report.TotalExchanges > 0 {
		report.AvgDurationMS = totalDuration / float64(report.TotalExchanges) * 1000
	}
	report.UniqueHosts = len(hostCounts)
	report.TopHosts = topHosts(hostCounts, hostFirstSeen, topHostsLimit)

	if httpCount > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d exchanges used insecure HTTP; migrate to HTTPS", httpCount))
	}
	if report.TotalExchanges > 0 && failedCount*10 > report.TotalExchanges {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("high failure rate (%d/%d); investigate errors", failedCount, report.TotalExchanges))
	}
	if slowCount > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d slow exchanges detected; optimize performance", slowCount))
	}

	return report, nil
}

// topHosts ranks hosts by count descending; ties keep first-seen order.
func topHosts(counts, firstSeen map[string]int, n int) []models.HostCount {
	hosts := make([]models.HostCount, 0, len(counts))
	for host, count := range counts {
		hosts = append(hosts, models.HostCount{Host: host, Count: count})
	}
	sort.SliceStable(hosts, func(i, j int) bool {
		if hosts[i].Count != hosts[j].Count {
			return hosts[i].Count > hosts[j].Count
		}
		return firstSeen[hosts[i].Host] < firstSeen[hosts[j].Host]
	})
	if len(hosts) > n {
		hosts = hosts[:n]
	}
	return hosts
}
