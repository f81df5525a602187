package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nawedy/vigil/internal/api"
	"github.com/nawedy/vigil/internal/chaos"
)

var chaosCmd = &cobra.Command{
	Use:   "chaos",
	Short: "Drive chaos test runs",
}

var chaosStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a chaos test",
	RunE:  runChaosStart,
}

var chaosStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running chaos test",
	RunE:  runChaosStop,
}

var chaosStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the chaos test report",
	RunE:  runChaosStatus,
}

func init() {
	rootCmd.AddCommand(chaosCmd)
	chaosCmd.AddCommand(chaosStartCmd)
	chaosCmd.AddCommand(chaosStopCmd)
	chaosCmd.AddCommand(chaosStatusCmd)

	chaosStartCmd.Flags().String("intensity", "low", "Experiment intensity (low|medium|high)")
	chaosStartCmd.Flags().String("load-url", "", "Generate load against this URL during the run")
	chaosStartCmd.Flags().Int("load-rate", 0, "Load requests per second (requires --load-url)")
}

func postJSON(path string, body, out interface{}) error {
	client := &http.Client{Timeout: 30 * time.Second}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := client.Post(serverURL()+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func runChaosStart(cmd *cobra.Command, args []string) error {
	intensity, _ := cmd.Flags().GetString("intensity")
	loadURL, _ := cmd.Flags().GetString("load-url")
	loadRate, _ := cmd.Flags().GetInt("load-rate")

	req := api.ChaosStartRequest{Intensity: intensity}
	if loadURL != "" {
		if loadRate <= 0 {
			return fmt.Errorf("--load-rate must be positive when --load-url is set")
		}
		req.Load = &api.LoadRequest{URL: loadURL, RatePerSecond: loadRate}
	}

	var resp api.ChaosStartResponse
	if err := postJSON("/v1/chaos/start", req, &resp); err != nil {
		return err
	}

	fmt.Printf("Chaos test started: intensity=%s\n", resp.Intensity)
	return nil
}

func runChaosStop(cmd *cobra.Command, args []string) error {
	var resp api.ChaosStopResponse
	if err := postJSON("/v1/chaos/stop", struct{}{}, &resp); err != nil {
		return err
	}

	fmt.Printf("Chaos test stopped: %d experiment(s) torn down\n", len(resp.Experiments))
	for _, experiment := range resp.Experiments {
		line := fmt.Sprintf("  %s (%s): %s", experiment.Target, experiment.Type, experiment.State)
		if experiment.State == chaos.StateRecoveryFailed {
			line += " (" + experiment.Recovery + ")"
		}
		fmt.Println(line)
	}

	return nil
}

func runChaosStatus(cmd *cobra.Command, args []string) error {
	var report chaos.Report
	if err := getJSON("/v1/chaos/report", &report); err != nil {
		return err
	}

	if report.Running {
		fmt.Printf("Chaos test running for %s\n", report.Duration.Round(time.Second))
	} else if report.StartedAt.IsZero() {
		fmt.Println("No chaos test has run")
		return nil
	} else {
		fmt.Printf("Last chaos test ran for %s\n", report.Duration.Round(time.Second))
	}

	for _, experiment := range report.Experiments {
		fmt.Printf("  %s (%s): %s, %s\n",
			experiment.Target, experiment.Type, experiment.State, experiment.Impact)
	}

	if report.Load != nil {
		fmt.Printf("Load: %d requests, %.1f%% success, p95=%s p99=%s\n",
			report.Load.Requests, report.Load.SuccessRatio*100,
			report.Load.P95Latency, report.Load.P99Latency)
	}

	return nil
}
