package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewMachineCmd создаёт группу команд для действий машин.
func NewMachineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Operate machines within an order",
	}

	cmd.AddCommand(
		newMachineStartCmd(clientFn, outputFn),
		newMachineProgressCmd(clientFn, outputFn),
		newMachineCompleteCmd(clientFn, outputFn),
		newMachineStopCmd(clientFn, outputFn),
		newMachineResumeCmd(clientFn, outputFn),
		newMachineRowsCmd(clientFn, outputFn),
		newMachinePendingCmd(clientFn, outputFn),
	)

	return cmd
}

var progressHeaders = []string{"MACHINE_ID", "STEP", "SEQ", "STATUS", "QUALITY", "REASON"}

func progressRow(m *ProgressResponse) []string {
	return []string{
		m.MachineID,
		strconv.Itoa(m.StepIndex),
		strconv.Itoa(m.SequenceOrder),
		m.Status,
		m.QualityStatus,
		m.Reason,
	}
}

// readRowsFile читает батч строк из JSON-файла.
func readRowsFile(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("rows file is not valid JSON")
	}
	return data, nil
}

func printSnapshot(out *Output, snap *SnapshotResponse) {
	applied := 0
	for _, r := range snap.Results {
		if r.Applied {
			applied++
		}
	}
	out.Success(fmt.Sprintf("Applied %d of %d mutations", applied, len(snap.Results)))

	headers := []string{"MACHINE_ID", "STATUS", "ROWS", "NET_KG", "WASTAGE_KG", "EFFICIENCY"}
	rows := [][]string{{
		snap.Machine.MachineID,
		snap.Machine.Status,
		strconv.Itoa(snap.Output.Rows),
		fmt.Sprintf("%.1f", snap.Output.NetWeight),
		fmt.Sprintf("%.1f", snap.Output.Wastage),
		fmt.Sprintf("%.1f%%", snap.Output.Efficiency),
	}}
	out.Print(headers, rows, snap)
}

func newMachineStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var operatorID string

	cmd := &cobra.Command{
		Use:   "start ORDER_ID MACHINE_ID",
		Short: "Start a machine on an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			mp, err := client.StartMachine(args[0], args[1], operatorID)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Machine started: %s", mp.MachineID))
			out.Print(progressHeaders, [][]string{progressRow(mp)}, mp)
			return nil
		},
	}

	cmd.Flags().StringVar(&operatorID, "operator", "", "Operator ID (required)")
	cmd.MarkFlagRequired("operator")

	return cmd
}

func newMachineProgressCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var operatorID string
	var rowsFile string
	var notes string

	cmd := &cobra.Command{
		Use:   "progress ORDER_ID MACHINE_ID",
		Short: "Apply a batch of production rows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rows, err := readRowsFile(rowsFile)
			if err != nil {
				return err
			}

			snap, err := client.SaveProgress(args[0], args[1], SaveProgressRequest{
				OperatorID: operatorID,
				Rows:       rows,
				Notes:      notes,
			})
			if err != nil {
				return err
			}

			printSnapshot(out, snap)
			return nil
		},
	}

	cmd.Flags().StringVar(&operatorID, "operator", "", "Operator ID (required)")
	cmd.Flags().StringVar(&rowsFile, "rows", "", "Path to JSON file with row mutations (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "Note recorded in the order audit log")
	cmd.MarkFlagRequired("operator")
	cmd.MarkFlagRequired("rows")

	return cmd
}

func newMachineCompleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var operatorID string
	var rowsFile string
	var overrideStatus string
	var overrideNotes []string

	cmd := &cobra.Command{
		Use:   "complete ORDER_ID MACHINE_ID",
		Short: "Complete a machine and run quality evaluation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rows, err := readRowsFile(rowsFile)
			if err != nil {
				return err
			}

			req := CompleteRequest{OperatorID: operatorID, Rows: rows}
			if overrideStatus != "" {
				req.Override = &OverrideRequest{Status: overrideStatus, Notes: overrideNotes}
			}

			snap, err := client.CompleteMachine(args[0], args[1], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Machine completed, quality: %s", snap.Machine.QualityStatus))
			printSnapshot(out, snap)
			return nil
		},
	}

	cmd.Flags().StringVar(&operatorID, "operator", "", "Operator ID (required)")
	cmd.Flags().StringVar(&rowsFile, "rows", "", "Path to JSON file with trailing row mutations")
	cmd.Flags().StringVar(&overrideStatus, "override", "", "Quality override verdict (supervisor only)")
	cmd.Flags().StringSliceVar(&overrideNotes, "note", nil, "Quality override note (repeatable)")
	cmd.MarkFlagRequired("operator")

	return cmd
}

func newMachineStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var operatorID string
	var stopType string
	var reason string
	var note string
	var rowsFile string
	var resumeAt string

	cmd := &cobra.Command{
		Use:   "stop ORDER_ID MACHINE_ID",
		Short: "Stop a running machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rows, err := readRowsFile(rowsFile)
			if err != nil {
				return err
			}

			snap, err := client.StopMachine(args[0], args[1], StopRequest{
				OperatorID:      operatorID,
				Type:            stopType,
				Reason:          reason,
				Note:            note,
				Rows:            rows,
				PlannedResumeAt: resumeAt,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Machine stopped (%s): %s", stopType, snap.Machine.MachineID))
			printSnapshot(out, snap)
			return nil
		},
	}

	cmd.Flags().StringVar(&operatorID, "operator", "", "Operator ID (required)")
	cmd.Flags().StringVar(&stopType, "type", "PAUSE", "Stop type (PAUSE, MAINTENANCE, STOP, ERROR)")
	cmd.Flags().StringVar(&reason, "reason", "", "Stop reason (required for MAINTENANCE and ERROR)")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note")
	cmd.Flags().StringVar(&rowsFile, "rows", "", "Path to JSON file with trailing row mutations")
	cmd.Flags().StringVar(&resumeAt, "resume-at", "", "Planned resume time (RFC3339)")
	cmd.MarkFlagRequired("operator")

	return cmd
}

func newMachineResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var operatorID string

	cmd := &cobra.Command{
		Use:   "resume ORDER_ID MACHINE_ID",
		Short: "Resume a paused or errored machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			mp, err := client.ResumeMachine(args[0], args[1], operatorID)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Machine resumed: %s", mp.MachineID))
			out.Print(progressHeaders, [][]string{progressRow(mp)}, mp)
			return nil
		},
	}

	cmd.Flags().StringVar(&operatorID, "operator", "", "Operator ID (required)")
	cmd.MarkFlagRequired("operator")

	return cmd
}

func newMachineRowsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "rows ORDER_ID MACHINE_ID",
		Short: "List production rows of a machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rows, err := client.ListRows(args[0], args[1])
			if err != nil {
				return err
			}

			headers := []string{"ID", "GROSS_KG", "TARE_KG", "NET_KG", "WASTAGE_KG", "UNITS", "NOTE"}
			table := make([][]string, len(rows))
			for i, r := range rows {
				table[i] = []string{
					r.ID,
					fmt.Sprintf("%.1f", r.GrossWeight),
					fmt.Sprintf("%.1f", r.TareWeight),
					fmt.Sprintf("%.1f", r.NetWeight),
					fmt.Sprintf("%.1f", r.Wastage),
					strconv.Itoa(r.Units),
					r.Note,
				}
			}

			out.Print(headers, table, rows)
			return nil
		},
	}
}

func newMachinePendingCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pending MACHINE_ID",
		Short: "Show the work queue of a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			work, err := client.GetPending(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ORDER_ID", "NUMBER", "PRIORITY", "STEP", "SEQ", "CREATED"}
			rows := make([][]string, len(work))
			for i, wk := range work {
				rows[i] = []string{
					wk.OrderID,
					wk.OrderNumber,
					wk.Priority,
					strconv.Itoa(wk.StepIndex),
					strconv.Itoa(wk.SequenceOrder),
					wk.CreatedAt,
				}
			}

			out.Print(headers, rows, work)
			return nil
		},
	}
}
