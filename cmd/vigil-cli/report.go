package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nawedy/vigil/internal/api"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show server reports",
}

var healthReportCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the latest service health view",
	RunE:  runHealthReport,
}

var costReportCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show the cost report and open alerts",
	RunE:  runCostReport,
}

var checksReportCmd = &cobra.Command{
	Use:   "checks",
	Short: "Show registered synthetic checks and their latest results",
	RunE:  runChecksReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(healthReportCmd)
	reportCmd.AddCommand(costReportCmd)
	reportCmd.AddCommand(checksReportCmd)
}

func getJSON(path string, out interface{}) error {
	client := &http.Client{Timeout: 15 * time.Second}

	resp, err := client.Get(serverURL() + path)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func runHealthReport(cmd *cobra.Command, args []string) error {
	var overview api.OverviewResponse
	if err := getJSON("/v1/health", &overview); err != nil {
		return err
	}

	fmt.Printf("Overall status: %s\n\n", overview.Status)
	for _, service := range overview.Services {
		fmt.Printf("%s: %s\n", service.Service, service.Status)
		for _, issue := range service.Issues {
			fmt.Printf("  issue: %s\n", issue)
		}
		for _, rec := range service.Recommendations {
			fmt.Printf("  recommendation: %s\n", rec)
		}
	}

	return nil
}

func runCostReport(cmd *cobra.Command, args []string) error {
	var report api.CostReportResponse
	if err := getJSON("/v1/costs/report", &report); err != nil {
		return err
	}

	fmt.Printf("Cost report %s to %s\n",
		report.Report.StartDate.Format("2006-01-02"),
		report.Report.EndDate.Format("2006-01-02"))
	fmt.Printf("Total: %.2f\n\n", report.Report.Total)

	for _, service := range report.Report.Services {
		fmt.Printf("%s: total=%.2f avg=%.2f min=%.2f max=%.2f entries=%d\n",
			service.Service, service.Total, service.Average, service.Min, service.Max, service.Entries)
	}

	var alerts api.CostAlertsResponse
	if err := getJSON("/v1/costs/alerts", &alerts); err != nil {
		return err
	}

	if alerts.Total > 0 {
		fmt.Printf("\n%d cost alert(s):\n", alerts.Total)
		for _, alert := range alerts.Alerts {
			fmt.Printf("  %s: %.2f exceeds threshold %.2f (+%.1f%%) at %s\n",
				alert.Service, alert.CurrentAmount, alert.Threshold,
				alert.PercentageIncrease, alert.Timestamp.Format(time.RFC3339))
		}
	}

	return nil
}

func runChecksReport(cmd *cobra.Command, args []string) error {
	var checks api.CheckListResponse
	if err := getJSON("/v1/checks", &checks); err != nil {
		return err
	}

	fmt.Printf("%d check(s) registered\n\n", checks.Total)
	for _, check := range checks.Checks {
		fmt.Printf("%s: %s %s\n", check.Name, check.Method, check.Endpoint)
		if check.LastResult != nil {
			state := "ok"
			if !check.LastResult.Success {
				state = "failed: " + check.LastResult.Error
			}
			fmt.Printf("  last run %s in %s: %s\n",
				check.LastResult.Timestamp.Format(time.RFC3339),
				check.LastResult.Duration, state)
		}
	}

	return nil
}
