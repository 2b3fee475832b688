// Package output provides functions to print messages with optional color formatting
package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/domain"
)

const (
	Plain   = color.FgWhite
	Success = color.FgGreen
	Warning = color.FgYellow
	Error   = color.FgRed
)

var maybeColorize func(kind color.Attribute, tmpl string, a ...any) string

// InitColors sets up color functions based on environment
func InitColors(isColorDisabled bool) {
	// Check if colors should be enabled
	if color.NoColor || isColorDisabled {
		// Fallback to plain formatting if colors are not supported
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return fmt.Sprintf(tmpl, a...)
		}
	} else {
		// Enable colors
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return color.New(kind).SprintfFunc()(tmpl, a...)
		}
	}
}

// PrintMessage formats a message with color (if enabled) and prints it
func PrintMessage(kind color.Attribute, tmpl string, a ...any) string {
	if maybeColorize == nil || kind == Plain {
		return fmt.Sprintf(tmpl+"\n", a...)
	} else {
		return fmt.Sprintln(maybeColorize(kind, tmpl, a...))
	}
}

// FprintPlain writes a formatted line to the command's output stream
func FprintPlain(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), tmpl+"\n", a...)
	return err
}

func PrintTable(header []string, data [][]string) (string, error) {
	buf := strings.Builder{}

	table := tablewriter.NewTable(
		&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines: tw.Lines{
					ShowHeaderLine: tw.Off,
				},
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignRight, tw.AlignLeft}},
			},
		}))

	if len(header) > 0 {
		table.Header(header)
	}

	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("bulk adding data to table: %w", err)
	}

	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}

	return buf.String(), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func PrintDeploymentDetails(deployment *domain.Deployment) (string, error) {
	data := [][]string{
		{"ID", deployment.ID.String()},
		{"Device", deployment.DeviceID},
		{"Image", deployment.ImageID},
		{"Status", deployment.Status.String()},
		{"Progress", strconv.Itoa(deployment.Progress) + "%"},
		{"Schedule", deployment.ScheduleType.String()},
	}

	if deployment.ScheduledFor != nil {
		data = append(data, []string{"Scheduled For", formatTime(deployment.ScheduledFor)})
	}
	if deployment.RecurringPattern != nil {
		data = append(data, []string{"Pattern", *deployment.RecurringPattern})
	}
	if len(deployment.PostTasks) > 0 {
		data = append(data, []string{"Post Tasks", strings.Join(deployment.PostTasks, "\n")})
	}

	data = append(data, [][]string{
		{"Last Run", formatTime(deployment.LastRunAt)},
		{"Next Run", formatTime(deployment.NextRunAt)},
		{"Started At", formatTime(deployment.StartedAt)},
		{"Completed At", formatTime(deployment.CompletedAt)},
	}...)

	if deployment.ErrorMessage != "" {
		data = append(data, []string{"Error", deployment.ErrorMessage})
	}

	data = append(data, [][]string{
		{"Created At", deployment.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Updated At", deployment.UpdatedAt.Format("2006-01-02 15:04:05")},
	}...)

	table, err := PrintTable([]string{}, data)
	if err != nil {
		return "", fmt.Errorf("printing deployment details table: %w", err)
	}
	return table, nil
}

func PrintDeploymentList(deployments []*domain.Deployment) (string, error) {
	if len(deployments) == 0 {
		return PrintMessage(Plain, "No deployments found."), nil
	}

	header := []string{
		"ID",
		"Device",
		"Image",
		"Status",
		"Progress",
		"Schedule",
		"Next Run",
	}
	var data [][]string
	for _, deployment := range deployments {
		data = append(data, []string{
			deployment.ID.String(),
			deployment.DeviceID,
			deployment.ImageID,
			deployment.Status.String(),
			strconv.Itoa(deployment.Progress) + "%",
			deployment.ScheduleType.String(),
			formatTime(deployment.NextRunAt),
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing deployment list table: %w", err)
	}

	return table, nil
}

func PrintTaskRunList(runs []*domain.TaskRun) (string, error) {
	if len(runs) == 0 {
		return PrintMessage(Plain, "No post-deployment tasks found."), nil
	}

	header := []string{"ID", "Task", "Status", "Progress"}
	var data [][]string
	for _, run := range runs {
		data = append(data, []string{
			run.ID.String(),
			run.TaskType,
			run.Status.String(),
			strconv.Itoa(run.Progress) + "%",
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing task run list table: %w", err)
	}

	return table, nil
}

func PrintDeviceStatusList(statuses []domain.DeviceStatus) (string, error) {
	if len(statuses) == 0 {
		return PrintMessage(Plain, "No devices found."), nil
	}

	header := []string{"Device", "Image", "Status", "Progress", "Updated At"}
	var data [][]string
	for _, s := range statuses {
		data = append(data, []string{
			s.DeviceID,
			s.ImageID,
			s.Status.String(),
			strconv.Itoa(s.Progress) + "%",
			s.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing device status table: %w", err)
	}

	return table, nil
}

// CLI flag for disabling color output

// NoColor is a flag that can be used to disable colored output in the CLI.
var NoColor = &noColorFlag{set: false}

type noColorFlag struct {
	set bool
}

func (f *noColorFlag) Set(value string) error {
	// This is a boolean flag, so we ignore the value and just mark it as set
	f.set = true
	return nil
}

func (f *noColorFlag) String() string {
	if f.set {
		return "true"
	}
	return "false"
}

func (f *noColorFlag) Type() string {
	return "bool"
}

// IsSet returns true if the --no-color flag was explicitly set
func (f *noColorFlag) IsSet() bool {
	return f.set
}

// IsBoolFlag tells pflag this is a boolean flag (no argument required)
func (f *noColorFlag) IsBoolFlag() bool {
	return true
}
