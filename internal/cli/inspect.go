package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/mgpai22/letra/internal/subtitle"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [srt_file]",
	Short: "Show the cues of an SRT file as a table",
	Long: `Parse an SRT file and print its cues with their timing.

Cues with timestamps that cannot be read, or that end before they start,
are flagged in the last column.

Examples:
  letra inspect song.srt`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"skipConfigLoad": "true"},
	RunE:        runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	blocks, err := subtitle.ParseSRTFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read subtitles: %w", err)
	}
	if len(blocks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cues found.")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderCueTable(blocks))
	return nil
}

func renderCueTable(blocks []subtitle.Block) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Start", "End", "Duration", "Text", "Note"})

	seen := make(map[int]bool, len(blocks))
	for _, b := range blocks {
		duration, note := cueTiming(b)
		if seen[b.ID] {
			note = joinNotes(note, "duplicate id")
		}
		seen[b.ID] = true

		tw.AppendRow(table.Row{
			strconv.Itoa(b.ID),
			b.StartTime,
			b.EndTime,
			duration,
			strings.ReplaceAll(b.Text, "\n", " / "),
			note,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, WidthMax: 60},
	})
	tw.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d cues", len(blocks)), ""})

	return tw.Render()
}

// cueTiming returns the formatted duration and a note for bad timing.
func cueTiming(b subtitle.Block) (string, string) {
	start, err := subtitle.ParseTimestamp(b.StartTime)
	if err != nil {
		return "", "bad start time"
	}
	end, err := subtitle.ParseTimestamp(b.EndTime)
	if err != nil {
		return "", "bad end time"
	}
	if end < start {
		return "", "ends before it starts"
	}
	return fmt.Sprintf("%.3fs", (end - start).Seconds()), ""
}

func joinNotes(a, b string) string {
	if a == "" {
		return b
	}
	return a + ", " + b
}
