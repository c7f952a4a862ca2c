package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"
)

func FormatJSON(out io.Writer, data interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func FormatHealth(out io.Writer, data map[string]interface{}) error {
	fmt.Fprintf(out, "Status: %s\n\n", getString(data["status"]))

	checks, ok := data["checks"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid health data")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tOK\tDETAIL")

	for _, name := range []string{"api", "database", "glances", "openclaw"} {
		check, _ := checks[name].(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, formatOK(check["ok"]), checkDetail(name, check))
	}

	return w.Flush()
}

func checkDetail(name string, check map[string]interface{}) string {
	if e := getString(check["error"]); e != "" {
		return e
	}

	switch name {
	case "api":
		return "up " + formatUptime(check["uptime"])
	case "database":
		if initialized, _ := check["initialized"].(bool); !initialized {
			return "not yet initialized"
		}
		return formatNumber(check["samples"]) + " samples"
	case "glances":
		return fmt.Sprintf("%s (%sms)", getString(check["url"]), formatNumber(check["latencyMs"]))
	case "openclaw":
		if installed, _ := check["installed"].(bool); !installed {
			return "not installed"
		}
		return getString(check["version"])
	}
	return ""
}

func FormatStatus(out io.Writer, data map[string]interface{}) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Installed:\t%s\n", formatYesNo(data["installed"]))
	fmt.Fprintf(w, "Status:\t%s\n", getString(data["status"]))
	fmt.Fprintf(w, "Source:\t%s\n", getString(data["source"]))
	if model := getString(data["model"]); model != "" {
		fmt.Fprintf(w, "Model:\t%s\n", model)
	}
	fmt.Fprintf(w, "Sessions:\t%s\n", formatNumber(data["sessions"]))
	fmt.Fprintf(w, "Tokens:\t%s\n", formatNumber(data["tokens"]))
	fmt.Fprintf(w, "Tokens (24h):\t%s\n", formatNumber(data["tokens24h"]))
	fmt.Fprintf(w, "Context Used:\t%s%%\n", formatNumber(data["contextUsed"]))

	return w.Flush()
}

func FormatTokens(out io.Writer, data map[string]interface{}) error {
	cost, _ := data["cost"].(map[string]interface{})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Model:\t%s (priced as %s)\n", getString(data["model"]), getString(data["pricingModel"]))
	fmt.Fprintf(w, "Input:\t%s\t$%s\n", formatNumber(data["input"]), formatCost(cost["input"]))
	fmt.Fprintf(w, "Output:\t%s\t$%s\n", formatNumber(data["output"]), formatCost(cost["output"]))
	fmt.Fprintf(w, "Total:\t%s\t$%s\n", formatNumber(data["total"]), formatCost(cost["total"]))
	if err := w.Flush(); err != nil {
		return err
	}

	if label := getString(data["estimateLabel"]); label != "" {
		fmt.Fprintf(out, "\n%s\n", label)
	}
	return nil
}

func FormatHistory(out io.Writer, data map[string]interface{}) error {
	metrics, ok := data["metrics"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid history data")
	}

	fmt.Fprintf(out, "Range: %s (%s samples)\n\n", getString(data["range"]), formatNumber(data["count"]))
	if len(metrics) == 0 {
		fmt.Fprintln(out, "No history available")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tCPU %\tRAM %\tDISK %")

	for _, m := range metrics {
		row, _ := m.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			formatUnix(row["timestamp"]),
			formatFloat(row["cpu"]),
			formatFloat(row["ram"]),
			formatFloat(row["disk"]),
		)
	}

	return w.Flush()
}

func FormatProcesses(out io.Writer, data map[string]interface{}) error {
	procs, ok := data["processes"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid processes data")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCPU %\tRAM MB\tAVG CPU %\tAVG RAM MB\tANOMALY")

	for _, p := range procs {
		proc, _ := p.(map[string]interface{})
		anomaly := getString(proc["anomaly"])
		if anomaly == "" {
			anomaly = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			getString(proc["name"]),
			formatFloat(proc["cpu"]),
			formatFloat(proc["ramMb"]),
			formatOptional(proc["avgCpu"]),
			formatOptional(proc["avgRamMb"]),
			anomaly,
		)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if hasHistory, _ := data["hasHistory"].(bool); !hasHistory {
		fmt.Fprintln(out, "\nNo process history yet")
	}
	return nil
}

func FormatCron(out io.Writer, data map[string]interface{}) error {
	jobs, ok := data["jobs"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid cron data")
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No cron jobs")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENABLED\tSCHEDULE\tNEXT RUN\tLAST RUN\tLAST STATUS")

	for _, j := range jobs {
		job, _ := j.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			getString(job["name"]),
			formatYesNo(job["enabled"]),
			getString(job["schedule"]),
			formatUnixMillis(job["nextRun"]),
			formatUnixMillis(job["lastRun"]),
			getString(job["lastStatus"]),
		)
	}

	return w.Flush()
}

func FormatConnections(out io.Writer, data map[string]interface{}) error {
	conns, ok := data["connections"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid connections data")
	}
	if len(conns) == 0 {
		fmt.Fprintln(out, "No established connections")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROCESS\tHOST\tPORT")

	for _, c := range conns {
		conn, _ := c.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			getString(conn["process"]),
			getString(conn["host"]),
			formatNumber(conn["port"]),
		)
	}

	return w.Flush()
}

func getString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func formatNumber(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case int:
		return strconv.Itoa(n)
	default:
		return "0"
	}
}

func formatFloat(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.1f", f)
	}
	return "0.0"
}

func formatOptional(v interface{}) string {
	if v == nil {
		return "-"
	}
	return formatFloat(v)
}

func formatCost(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', 4, 64)
	}
	return "0.0000"
}

func formatUnix(v interface{}) string {
	if f, ok := v.(float64); ok {
		return time.Unix(int64(f), 0).Format("2006-01-02 15:04:05")
	}
	return ""
}

func formatUnixMillis(v interface{}) string {
	if f, ok := v.(float64); ok {
		return time.UnixMilli(int64(f)).Format("2006-01-02 15:04")
	}
	return "-"
}

func formatUptime(v interface{}) string {
	var seconds int64
	switch n := v.(type) {
	case float64:
		seconds = int64(n)
	case int64:
		seconds = n
	case int:
		seconds = int64(n)
	default:
		return "0s"
	}

	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func formatOK(v interface{}) string {
	if ok, _ := v.(bool); ok {
		return "ok"
	}
	return "FAIL"
}

func formatYesNo(v interface{}) string {
	if b, _ := v.(bool); b {
		return "yes"
	}
	return "no"
}
